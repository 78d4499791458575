package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sunograb/pkg/config"
	"sunograb/pkg/dedupe"
	"sunograb/pkg/logger"
	"sunograb/pkg/ui"
)

var dedupeRemove bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [directory]",
	Short: "Find duplicate files in the download directory",
	Long: `Scans the download directory for files with identical content.

Tracks renamed between runs can leave byte-identical copies behind under
different filenames. This command lists each duplicate group; with
--remove it keeps the first file of each group and deletes the rest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeRemove, "remove", false, "delete all but one file per duplicate group")
	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	dir := cfg.Download.OutputDir
	if len(args) > 0 {
		dir = args[0]
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("cannot scan %s: %w", dir, err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	groups, err := dedupe.Scan(dir, log)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		ui.PrintSuccess(fmt.Sprintf("No duplicates found in %s", dir))
		return nil
	}

	removed := 0
	for i, g := range groups {
		fmt.Printf("\nGroup %d (%d bytes, sha256 %s):\n", i+1, g.Size, g.Hash[:12])
		for j, path := range g.Paths {
			marker := "keep"
			if j > 0 && dedupeRemove {
				if err := os.Remove(path); err != nil {
					log.WithError(err).Warn("failed to remove duplicate")
					marker = "failed"
				} else {
					marker = "removed"
					removed++
				}
			} else if j > 0 {
				marker = "duplicate"
			}
			fmt.Printf("  [%s] %s\n", marker, filepath.Clean(path))
		}
	}

	fmt.Println()
	if dedupeRemove {
		ui.PrintSuccess(fmt.Sprintf("Removed %d duplicate file(s) across %d group(s)", removed, len(groups)))
	} else {
		ui.PrintWarning(fmt.Sprintf("Found %d duplicate group(s); re-run with --remove to delete extras", len(groups)))
	}
	return nil
}
