package main

import (
	"fmt"
	"time"

	"github.com/dpedu/b2mirror/internal/config"
	"github.com/dpedu/b2mirror/internal/mirror"
	"github.com/dpedu/b2mirror/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [DESTINATION]",
		Short: "List the entries of a local index",
		Long: `Print every path tracked by the local index of DESTINATION, or of the
file given with --index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("index")
			if path == "" {
				if len(args) == 0 {
					return fmt.Errorf("%w: need DESTINATION or --index", mirror.ErrConfig)
				}
				dest, err := config.ParseDestination(args[0])
				if err != nil {
					return err
				}
				if path, err = config.DefaultIndexPath(dest); err != nil {
					return err
				}
			}
			if !utils.FileExists(path) {
				return fmt.Errorf("%w: no index at %s", mirror.ErrConfig, path)
			}
			cmd.SilenceUsage = true
			return printIndex(cmd, path)
		},
	}

	cmd.Flags().String("index", "", "index file to read")
	return cmd
}

func printIndex(cmd *cobra.Command, path string) error {
	idx := mirror.NewIndex(path)
	if err := idx.OpenReadOnly(); err != nil {
		return err
	}
	defer idx.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cyan.Bold(true).Render("index")+" "+gray.Render(path))

	var count, total int64
	for entry, err := range idx.Entries() {
		if err != nil {
			return err
		}
		modified := time.Unix(entry.ModTime, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(out, "%s  %9s  %s\n", gray.Render(modified), humanize.Bytes(uint64(entry.Size)), entry.Path)
		count++
		total += entry.Size
	}

	fmt.Fprintf(out, "%s %d files, %s\n", green.Render("total"), count, humanize.Bytes(uint64(total)))
	return nil
}
