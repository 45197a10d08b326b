package cli

import (
	"fmt"

	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/spf13/cobra"
)

var (
	syncDryRun bool
	syncScope  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update the spec documents to match the code",
	Long: `Plan the document edits that resolve the current drift and apply them.
Use --dry-run to print the proposed changes without writing anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := wantsJSON(cmd)
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		out, err := services.Dispatcher.Invoke(cmd.Context(), application.OpSyncSpecsWithCode, application.Args{DryRun: syncDryRun, Scope: syncScope})
		if err != nil {
			return MapError(fmt.Errorf("failed to sync specs: %w", err))
		}
		report := out.(*application.SyncReport)

		if asJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			printSync(report)
		}
		if len(report.Errors) > 0 {
			return NewCLIError(fmt.Sprintf("%d changes failed", len(report.Errors)), "Check the document permissions and retry", nil)
		}
		return nil
	},
}

func printSync(report *application.SyncReport) {
	if len(report.ChangesProposed) == 0 {
		fmt.Println("Specs are already in sync with the code.")
	}
	for _, c := range report.ChangesProposed {
		fmt.Printf("%s %s (%s)\n", c.Operation, c.TargetDocument, c.EntityID)
		if c.Preview != "" {
			fmt.Println(c.Preview)
		}
	}
	if report.DryRun {
		if len(report.ChangesProposed) > 0 {
			fmt.Printf("Dry run: %d changes proposed, nothing written.\n", len(report.ChangesProposed))
		}
	} else {
		fmt.Printf("Applied %d of %d changes.\n", len(report.ChangesApplied), len(report.ChangesProposed))
	}
	for _, e := range report.Errors {
		fmt.Printf("Failed %s: %s\n", e.Change.ID, e.Error)
	}
	for _, u := range report.Unresolved {
		id := u.SpecEntityID
		if id == "" {
			id = u.CodeFactID
		}
		fmt.Printf("Needs manual attention: %s (%s)\n", id, u.Reason)
	}
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Only print the proposed changes")
	syncCmd.Flags().StringVar(&syncScope, "scope", "all", "Documents to update (all, requirements, design, api, models, tasks)")
	addOutputFlag(syncCmd)
	RootCmd.AddCommand(syncCmd)
}
