package cli

import (
	"fmt"

	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/felixgeelhaar/specsync/pkg/domain/consistency"
	"github.com/spf13/cobra"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the spec documents against each other",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := wantsJSON(cmd)
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		strict := validateStrict || services.Workspace.Config.Consistency.Strict
		out, err := services.Dispatcher.Invoke(cmd.Context(), application.OpValidateSpecConsistency, application.Args{Strict: strict})
		if err != nil {
			return MapError(fmt.Errorf("failed to validate specs: %w", err))
		}
		report := out.(*application.ConsistencyReport)

		if asJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			printConsistency(report)
		}
		if report.OverallStatus == consistency.StatusFailed {
			return findingsError(fmt.Sprintf("%d consistency errors", report.Errors), "Fix the listed documents and run 'specsync validate' again")
		}
		return nil
	},
}

func printConsistency(report *application.ConsistencyReport) {
	mode := "default"
	if report.StrictMode {
		mode = "strict"
	}
	fmt.Printf("Consistency: %s (%s mode, %d errors, %d warnings)\n", report.OverallStatus, mode, report.Errors, report.Warnings)
	for _, c := range report.ValidationResults {
		fmt.Printf("  [%s] %s/%s\n", c.Status, c.Category, c.RuleID)
		for _, issue := range c.Issues {
			where := issue.Document
			if issue.Line > 0 {
				where = fmt.Sprintf("%s:%d", issue.Document, issue.Line)
			}
			fmt.Printf("    - %s %s (%s)\n", issue.Level, issue.Message, where)
		}
	}
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat orphaned entities as errors")
	addOutputFlag(validateCmd)
	RootCmd.AddCommand(validateCmd)
}
