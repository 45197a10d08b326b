package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/mcp-go/client"
	"github.com/felixgeelhaar/specsync/pkg/application"
)

// SupportedSchemaMajor is the server schema major version this client understands.
const SupportedSchemaMajor = "1"

const schemaURI = "specsync://schema"

// ErrNoContent is returned when a tool result contains no content items.
var ErrNoContent = errors.New("specsync: empty tool result")

// ToolError is returned when the server answers a call with an error result.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("specsync: tool %s: %s", e.Tool, e.Message)
}

type options struct {
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

// Option configures the client.
type Option func(*options)

// WithTimeout sets the per-call timeout. Syncing a large tree can take a while.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetry configures how often a failed transport call is retried.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.initialDelay = initialDelay
	}
}

// Client is a typed Go client for the specsync MCP server.
type Client struct {
	mcp      *client.Client
	retryCfg retry.Config
	timeout  time.Duration
}

// NewClient creates a client over an MCP transport.
func NewClient(transport client.Transport, opts ...Option) *Client {
	o := options{timeout: 2 * time.Minute, maxAttempts: 3, initialDelay: 500 * time.Millisecond}
	for _, fn := range opts {
		fn(&o)
	}
	return &Client{
		mcp:     client.New(transport, client.WithTimeout(o.timeout)),
		timeout: o.timeout,
		retryCfg: retry.Config{
			MaxAttempts:   o.maxAttempts,
			InitialDelay:  o.initialDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*client.ServerInfo, error) {
	return c.mcp.Initialize(ctx)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any) (*client.ToolResult, error) {
	r := retry.New[*client.ToolResult](c.retryCfg)
	result, err := r.Do(ctx, func(ctx context.Context) (*client.ToolResult, error) {
		return c.mcp.CallTool(ctx, tool, args)
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return nil, &ToolError{Tool: tool, Message: msg}
	}
	return result, nil
}

func textResult(result *client.ToolResult) (string, error) {
	if len(result.Content) == 0 {
		return "", ErrNoContent
	}
	return result.Content[0].Text, nil
}

func unmarshalText[T any](result *client.ToolResult) (*T, error) {
	text, err := textResult(result)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &v, nil
}

func callJSON[T any](ctx context.Context, c *Client, tool string, args map[string]any) (*T, error) {
	res, err := c.call(ctx, tool, args)
	if err != nil {
		return nil, err
	}
	return unmarshalText[T](res)
}

// SchemaInfo is the content of the specsync://schema resource.
type SchemaInfo struct {
	SchemaVersion string   `json:"schema_version"`
	ServerVersion string   `json:"server_version"`
	ProjectRoot   string   `json:"project_root"`
	Tools         []string `json:"tools"`
}

// GetSchema reads the schema resource from the server.
func (c *Client) GetSchema(ctx context.Context) (*SchemaInfo, error) {
	rc, err := c.mcp.ReadResource(ctx, schemaURI)
	if err != nil {
		return nil, fmt.Errorf("read schema resource: %w", err)
	}
	var info SchemaInfo
	if err := json.Unmarshal([]byte(rc.Text), &info); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &info, nil
}

// Compatible returns an error unless the server schema major version matches
// SupportedSchemaMajor.
func (c *Client) Compatible(ctx context.Context) error {
	info, err := c.GetSchema(ctx)
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}
	if major := majorVersion(info.SchemaVersion); major != SupportedSchemaMajor {
		return fmt.Errorf("incompatible schema: server=%s (major %s), sdk supports major %s",
			info.SchemaVersion, major, SupportedSchemaMajor)
	}
	return nil
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}

// DetectDrift runs detect_spec_drift. An empty scope checks everything.
func (c *Client) DetectDrift(ctx context.Context, scope string) (*application.DriftReport, error) {
	args := map[string]any{}
	if scope != "" {
		args["scope"] = scope
	}
	return callJSON[application.DriftReport](ctx, c, application.OpDetectSpecDrift, args)
}

// ValidateConsistency runs validate_spec_consistency.
func (c *Client) ValidateConsistency(ctx context.Context, strict bool) (*application.ConsistencyReport, error) {
	args := map[string]any{}
	if strict {
		args["strict"] = true
	}
	return callJSON[application.ConsistencyReport](ctx, c, application.OpValidateSpecConsistency, args)
}

// SyncRequest holds the sync_specs_with_code arguments.
type SyncRequest struct {
	DryRun bool
	Scope  string
}

// Sync runs sync_specs_with_code.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (*application.SyncReport, error) {
	args := map[string]any{"dry_run": req.DryRun}
	if req.Scope != "" {
		args["scope"] = req.Scope
	}
	return callJSON[application.SyncReport](ctx, c, application.OpSyncSpecsWithCode, args)
}

// TraceabilityMatrix returns the rendered matrix in format (markdown, json or csv).
func (c *Client) TraceabilityMatrix(ctx context.Context, format string) (string, error) {
	args := map[string]any{}
	if format != "" {
		args["format"] = format
	}
	res, err := c.call(ctx, application.OpGenerateTraceabilityMatrix, args)
	if err != nil {
		return "", err
	}
	return textResult(res)
}

// CheckCoverage runs check_spec_coverage. A nil threshold uses the server default.
func (c *Client) CheckCoverage(ctx context.Context, threshold *float64) (*application.CoverageReport, error) {
	args := map[string]any{}
	if threshold != nil {
		args["threshold"] = *threshold
	}
	return callJSON[application.CoverageReport](ctx, c, application.OpCheckSpecCoverage, args)
}
