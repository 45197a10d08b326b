package cli

import (
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/specsync/pkg/storage"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and verify the sync audit log",
}

func openAuditLog() (*storage.FileEventStore, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	return storage.NewFileEventStore(filepath.Join(root, storage.StateDir))
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash chain of the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := openAuditLog()
		if err != nil {
			return err
		}

		fmt.Println("Verifying audit log integrity...")
		violations, err := events.VerifyIntegrity()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		if len(violations) == 0 {
			fmt.Println("Audit log is intact and verified.")
			return nil
		}

		fmt.Printf("Found %d integrity violations:\n", len(violations))
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		return findingsError("audit log integrity check failed", "Restore .specsync/events.jsonl from version control")
	},
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List the recorded sync changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := wantsJSON(cmd)
		if err != nil {
			return err
		}
		events, err := openAuditLog()
		if err != nil {
			return err
		}
		all, err := events.LoadAll()
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}
		if asJSON {
			return printJSON(all)
		}
		if len(all) == 0 {
			fmt.Println("No sync changes recorded.")
			return nil
		}
		for _, e := range all {
			fmt.Printf("%s %-20s %-7s %s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.Operation, e.Document, e.EntityID)
		}
		return nil
	},
}

func init() {
	addOutputFlag(auditLogCmd)
	auditCmd.AddCommand(auditVerifyCmd, auditLogCmd)
	RootCmd.AddCommand(auditCmd)
}
