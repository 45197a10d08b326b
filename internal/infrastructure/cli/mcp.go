package cli

import (
	"fmt"
	"os"
	"strings"

	inframcp "github.com/felixgeelhaar/specsync/internal/infrastructure/mcp"
	"github.com/spf13/cobra"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the specsync MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("SPECSYNC_SKIP_MCP_START") == "true" {
			return nil
		}
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		inframcp.Version, inframcp.BuildCommit, inframcp.BuildDate = Version, Commit, Date
		server, err := inframcp.NewServer(root, newLogger())
		if err != nil {
			return MapError(fmt.Errorf("failed to initialize server: %w", err))
		}
		switch strings.ToLower(mcpTransport) {
		case "stdio", "":
			err = server.StartStdio()
		case "http":
			err = server.StartHTTP(mcpAddr)
		case "ws", "websocket":
			err = server.StartWebSocket(mcpAddr)
		case "grpc":
			err = server.StartGRPC(mcpAddr)
		default:
			err = NewCLIError(fmt.Sprintf("unsupported transport: %s", mcpTransport), "Use stdio, http, ws or grpc", nil)
		}
		return err
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http, ws, grpc)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8080", "Address for http/ws/grpc transports")
	RootCmd.AddCommand(mcpCmd)
}
