package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/testdeck/internal/janitor"
)

func newAttachmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "Attachment store commands",
	}

	cmd.AddCommand(newAttachmentsGCCmd())
	return cmd
}

func newAttachmentsGCCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		grace      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove attachment files no step refers to",
		Long: `Deletes stored files that no test case step or test run step refers to
and that are older than the grace period (attachments.gc_grace unless
--grace is given). Uploads still being edited are younger than the grace
period and are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			files, err := openStore(cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("grace") {
				grace = cfg.Attachments.GCGrace
			}

			res, err := janitor.Sweep(cmd.Context(), gormDB, files, janitor.SweepOpts{Grace: grace, DryRun: dryRun})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Orphans) > 0 {
				w := newTable(out)
				w.AppendHeader([]any{"FILE", "SIZE", "MODIFIED"})
				for _, f := range res.Orphans {
					w.AppendRow([]any{f.Name, formatBytes(f.Size), formatTime(f.ModTime)})
				}
				alignRight(w, 2)
				w.Render()
			}
			verb := "Removed"
			count := res.Deleted
			if dryRun {
				verb = "Would remove"
				count = res.Orphaned
			}
			fmt.Fprintf(out, "Scanned %d file(s). %s %d orphaned file(s), %s.\n", res.Scanned, verb, count, formatBytes(res.Bytes))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list orphaned files without deleting them")
	cmd.Flags().DurationVar(&grace, "grace", 0, "only remove files older than this (default attachments.gc_grace)")
	return cmd
}
