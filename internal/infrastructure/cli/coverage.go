package cli

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/spf13/cobra"
)

var coverageThreshold float64

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Check requirement, design, API and test coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := wantsJSON(cmd)
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		var a application.Args
		if cmd.Flags().Changed("threshold") {
			a.Threshold = &coverageThreshold
		}
		out, err := services.Dispatcher.Invoke(cmd.Context(), application.OpCheckSpecCoverage, a)
		if err != nil {
			return MapError(fmt.Errorf("failed to check coverage: %w", err))
		}
		report := out.(*application.CoverageReport)

		if asJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			fmt.Printf("Requirements: %6.2f%%\n", report.Requirements)
			fmt.Printf("Design:       %6.2f%%\n", report.Design)
			fmt.Printf("API:          %6.2f%%\n", report.API)
			fmt.Printf("Tests:        %6.2f%%\n", report.Tests)
			fmt.Printf("Overall:      %6.2f%% (threshold %.2f%%, %d requirements)\n", report.Overall, report.Threshold, report.TotalRows)
			if len(report.Untested) > 0 {
				fmt.Printf("Untested: %s\n", strings.Join(report.Untested, ", "))
			}
		}
		if !report.Meets {
			return findingsError(fmt.Sprintf("coverage %.2f%% is below %.2f%%", report.Overall, report.Threshold), "Add tests or trace links for the untested requirements")
		}
		return nil
	},
}

func init() {
	coverageCmd.Flags().Float64Var(&coverageThreshold, "threshold", 80, "Minimum overall coverage percentage (defaults to the configured threshold)")
	addOutputFlag(coverageCmd)
	RootCmd.AddCommand(coverageCmd)
}
