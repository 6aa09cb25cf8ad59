package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/artifact"
	"dubber/internal/logging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale job staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			maxAge := olderThan
			if maxAge <= 0 {
				maxAge = time.Duration(cfg.Workflow.StaleStagingHours) * time.Hour
			}
			out := cmd.OutOrStdout()

			if dryRun {
				dirs, err := artifact.ListDirectories(cfg.Paths.StagingDir)
				if err != nil {
					return err
				}
				cutoff := time.Now().Add(-maxAge)
				rows := make([][]string, 0, len(dirs))
				for _, d := range dirs {
					if !d.ModTime.Before(cutoff) {
						continue
					}
					rows = append(rows, []string{d.Name, formatAge(d.ModTime, time.Now()), formatBytes(d.Size)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "Nothing to clean")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Directory", "Modified", "Size"}, rows, 2))
				return nil
			}

			result := artifact.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, logging.NewNop())
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to remove %s: %v\n", e.Path, e.Error)
			}
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "Nothing to clean")
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d staging directories could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold (default stale_staging_hours from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
