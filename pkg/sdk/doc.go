// Package sdk provides a typed Go client for the specsync MCP server.
//
// The client wraps mcp-go/client.CallTool with one method per operation and
// retries transport failures via fortify. Reports decode into the same types
// the server produces.
//
// Usage:
//
//	transport, _ := client.NewStdioTransport("specsync", "mcp")
//	c := sdk.NewClient(transport)
//	defer c.Close()
//
//	_, _ = c.Initialize(ctx)
//	report, _ := c.DetectDrift(ctx, "design")
//	fmt.Println(len(report.DriftDetected))
package sdk
