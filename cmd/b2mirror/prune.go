package main

import (
	"fmt"

	"github.com/dpedu/b2mirror/internal/app"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune DESTINATION PATH",
		Short: "Delete old versions of one mirrored file",
		Long: `Keep the newest --keep versions of PATH under DESTINATION and delete the
rest. --keep 0 removes the object entirely.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Destination = args[0]
			if err := cfg.ValidateDestination(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			keep, _ := cmd.Flags().GetInt("keep")
			a, err := app.New(cfg)
			if err != nil {
				return err
			}

			deleted, err := a.Prune(cmd.Context(), args[1], keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d versions of %s\n", green.Render("deleted"), deleted, args[1])
			return nil
		},
	}

	cmd.Flags().Int("keep", 1, "versions to keep")
	addCredentialFlags(cmd.Flags())
	return cmd
}
