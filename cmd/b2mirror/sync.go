package main

import (
	"fmt"

	"github.com/dpedu/b2mirror/internal/app"
	"github.com/dpedu/b2mirror/internal/blob"
	"github.com/dpedu/b2mirror/internal/mirror"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync SOURCE DESTINATION",
		Short: "Mirror SOURCE into DESTINATION (b2://bucket/prefix or s3://bucket/prefix)",
		Long: `Upload new and changed files from the local SOURCE directory and delete
objects whose local file is gone or excluded. Unchanged files are skipped
using an index that is stored next to the mirrored objects.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Source = args[0]
			cfg.Destination = args[1]
			if err := cfg.Validate(); err != nil {
				return err
			}

			// all good now, show header
			cmd.SilenceUsage = true
			showHeader(cmd, cfg.SourceLoc.String(), cfg.DestLoc.String())

			a, err := app.New(cfg)
			if err != nil {
				return err
			}

			stats, err := a.Sync(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), red.Render("sync failed: ")+stats.String())
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green.Render("sync complete: ")+stats.String())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.IntP("workers", "w", mirror.DefaultWorkers, "concurrent transfers")
	flags.Int("batch-size", mirror.DefaultBatchSize, "files dispatched per batch")
	flags.StringArrayP("exclude", "x", nil, "exclude paths matching this glob, relative to SOURCE (repeatable)")
	flags.String("exclude-from", "", "read gitignore style exclude rules from this file")
	flags.String("compare", mirror.CompareMtime, "change detection: mtime or size")
	flags.Int("keep", blob.DefaultKeep, "versions of each file kept in the bucket")
	flags.String("index", "", "local index path (default under the user cache dir)")
	addCredentialFlags(flags)
	return cmd
}

func showHeader(cmd *cobra.Command, source, dest string) {
	fmt.Fprintln(cmd.OutOrStdout(), cyan.Bold(true).Render("b2mirror")+" "+gray.Render(source+" → "+dest))
}
