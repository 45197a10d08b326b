package cli

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/spf13/cobra"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <operation> [json-args]",
	Short: "Run an operation by name and print its JSON report",
	Long: fmt.Sprintf(`Run one of the operations with JSON arguments, the same way an MCP client would.

Operations: %s`, strings.Join(application.Operations(), ", ")),
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		var raw []byte
		if len(args) == 2 {
			raw = []byte(args[1])
		}
		out, err := services.Dispatcher.InvokeJSON(cmd.Context(), args[0], raw)
		if err != nil {
			return MapError(fmt.Errorf("%s failed: %w", args[0], err))
		}
		return printJSON(out)
	},
}

func init() {
	RootCmd.AddCommand(invokeCmd)
}
