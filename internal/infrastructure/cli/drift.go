package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/spf13/cobra"
)

var driftScope string

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Detect drift between the spec documents and the code",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := wantsJSON(cmd)
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		out, err := services.Dispatcher.Invoke(cmd.Context(), application.OpDetectSpecDrift, application.Args{Scope: driftScope})
		if err != nil {
			return MapError(fmt.Errorf("failed to detect drift: %w", err))
		}
		report := out.(*application.DriftReport)

		if asJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			printDrift(report)
		}
		if len(report.DriftDetected) > 0 {
			return findingsError(fmt.Sprintf("%d drift findings", len(report.DriftDetected)), "Run 'specsync sync --dry-run' to preview the spec updates")
		}
		return nil
	},
}

func printDrift(report *application.DriftReport) {
	for _, s := range report.Skipped {
		fmt.Printf("Skipped %s: %s\n", s.Source, s.Reason)
	}
	if len(report.DriftDetected) == 0 {
		fmt.Printf("No drift detected across %d documents and %d code files (scope %s).\n",
			report.Summary.TotalFilesChecked, report.Summary.CodeFilesScanned, report.Scope)
		return
	}

	columns := []table.Column{
		{Title: "Severity", Width: 9},
		{Title: "Status", Width: 18},
		{Title: "Entity", Width: 24},
		{Title: "Location", Width: 32},
		{Title: "Description", Width: 60},
	}
	rows := make([]table.Row, 0, len(report.DriftDetected))
	for _, f := range report.DriftDetected {
		location := f.Location
		if location == "" {
			location = f.Document
		}
		rows = append(rows, table.Row{
			string(f.Severity),
			string(f.Status),
			truncate(f.SortKey(), 24),
			truncate(location, 32),
			truncate(f.Description, 60),
		})
	}

	sum := report.Summary
	fmt.Printf("Detected %d drift findings in %d of %d documents and %d of %d code files:\n",
		len(report.DriftDetected), sum.FilesWithDrift, sum.TotalFilesChecked, sum.CodeFilesWithDrift, sum.CodeFilesScanned)
	fmt.Println(renderTable(columns, rows))
	for _, f := range report.DriftDetected {
		if f.Hint != "" {
			fmt.Printf("- %s: %s\n", f.SortKey(), f.Hint)
		}
	}
	for _, e := range report.CodeErrors {
		fmt.Printf("Warning: %v\n", e)
	}
}

func init() {
	driftCmd.Flags().StringVar(&driftScope, "scope", "all", "Scope to check (all, requirements, design, api, tasks)")
	addOutputFlag(driftCmd)
	RootCmd.AddCommand(driftCmd)
}
