package cli

import (
	"fmt"

	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/felixgeelhaar/specsync/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	traceFormat string
	traceFile   string
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Generate the requirement traceability matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		out, err := services.Dispatcher.Invoke(cmd.Context(), application.OpGenerateTraceabilityMatrix, application.Args{Format: traceFormat})
		if err != nil {
			return MapError(fmt.Errorf("failed to generate the matrix: %w", err))
		}
		report := out.(*application.TraceabilityReport)

		if traceFile == "" {
			fmt.Print(report.Rendered)
			return nil
		}
		if err := storage.WriteFileAtomic(traceFile, []byte(report.Rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", traceFile, err)
		}
		fmt.Printf("Wrote %d requirements to %s\n", len(report.Matrix.Rows), traceFile)
		return nil
	},
}

func init() {
	traceCmd.Flags().StringVarP(&traceFormat, "format", "f", "markdown", "Matrix format (markdown, json, csv)")
	traceCmd.Flags().StringVar(&traceFile, "file", "", "Write the matrix to a file instead of stdout")
	RootCmd.AddCommand(traceCmd)
}
