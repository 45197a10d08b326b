package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/specsync/internal/infrastructure/config"
	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/storage"
	"github.com/spf13/cobra"
)

var initForce bool

var documentTitles = map[artifact.EntityKind]string{
	artifact.KindRequirement:   "# Requirements\n",
	artifact.KindDesignElement: "# Design\n",
	artifact.KindAPIContract:   "# API\n",
	artifact.KindTask:          "# Tasks\n",
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and empty spec documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		cfg := config.Default(root)

		path := config.Path(root)
		if _, err := os.Stat(path); err == nil && !initForce {
			return NewCLIError("configuration already exists", "Pass --force to overwrite "+path, nil)
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)

		byKind := cfg.Documents.ByKind()
		for _, kind := range artifact.AllEntityKinds() {
			doc := filepath.Join(root, cfg.SpecDir, byKind[kind])
			if _, err := os.Stat(doc); err == nil {
				continue
			}
			if err := storage.WriteFileAtomic(doc, []byte(documentTitles[kind]), 0o644); err != nil {
				return fmt.Errorf("failed to create %s: %w", doc, err)
			}
			fmt.Printf("Created %s\n", doc)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	RootCmd.AddCommand(initCmd)
}
