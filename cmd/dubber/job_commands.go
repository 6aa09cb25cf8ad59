package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/dubbing"
	"dubber/internal/opsserver"
)

const waitPollInterval = time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var target string
	var settings []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Queue media files for dubbing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voice, err := dubbing.ParseVoiceSettings(settings)
			if err != nil {
				return err
			}
			return ctx.withJobs(cmd, func(api jobAPI) error {
				out := cmd.OutOrStdout()
				ids := make([]int64, 0, len(args))
				for _, path := range args {
					id, err := api.Submit(cmd.Context(), path, target, voice)
					if err != nil {
						return fmt.Errorf("submit %s: %w", path, err)
					}
					ids = append(ids, id)
					if !ctx.jsonOutput() {
						fmt.Fprintf(out, "Queued job %d for %s\n", id, path)
					}
				}
				if !wait {
					if ctx.jsonOutput() {
						return writeJSON(cmd, map[string]any{"ids": ids})
					}
					return nil
				}
				final := make([]opsserver.JobResponse, 0, len(ids))
				for _, id := range ids {
					job, err := waitForJob(cmd.Context(), api, id, out, !ctx.jsonOutput())
					if err != nil {
						return err
					}
					final = append(final, job)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, final)
				}
				for _, job := range final {
					if job.Stage == string(dubbing.StageFailed) {
						return fmt.Errorf("job %d failed: %s", job.ID, job.Error)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language (ISO code or name; default from config)")
	cmd.Flags().StringArrayVar(&settings, "set", nil, "Voice setting key=value (vocal_volume, background_volume, speed, voice)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the jobs to finish")
	return cmd
}

func waitForJob(ctx context.Context, api jobAPI, id int64, out io.Writer, verbose bool) (opsserver.JobResponse, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	lastStage := ""
	for {
		job, err := api.Get(ctx, id)
		if err != nil {
			return opsserver.JobResponse{}, err
		}
		if job == nil {
			return opsserver.JobResponse{}, fmt.Errorf("job %d disappeared", id)
		}
		if verbose && job.Stage != lastStage {
			fmt.Fprintf(out, "  job %d: %s %s\n", id, formatProgress(job.Progress), job.Message)
			lastStage = job.Stage
		}
		if st, ok := dubbing.ParseStage(job.Stage); ok && st.IsTerminal() {
			if verbose {
				printOutcome(out, *job)
			}
			return *job, nil
		}
		select {
		case <-ctx.Done():
			return opsserver.JobResponse{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printOutcome(out io.Writer, job opsserver.JobResponse) {
	switch job.Stage {
	case string(dubbing.StageDone):
		fmt.Fprintf(out, "Job %d done: %s\n", job.ID, job.ResultPath)
		if job.Result != nil && job.Result.Degraded() {
			kinds := make([]string, 0, len(job.Result.Degradations))
			for _, d := range job.Result.Degradations {
				kinds = append(kinds, string(d.Kind))
			}
			fmt.Fprintf(out, "  degraded: %s\n", strings.Join(kinds, ", "))
		}
	case string(dubbing.StageFailed):
		fmt.Fprintf(out, "Job %d failed (%s): %s\n", job.ID, job.Kind, job.Error)
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show a job, or the daemon when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return showDaemonStatus(cmd, ctx)
			}
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withJobs(cmd, func(api jobAPI) error {
				job, err := api.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				renderJob(cmd.OutOrStdout(), *job)
				return nil
			})
		},
	}
}

func renderJob(out io.Writer, job opsserver.JobResponse) {
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Input:     %s (%s)\n", job.InputPath, job.MediaKind)
	fmt.Fprintf(out, "  Target:    %s\n", job.TargetLanguage)
	fmt.Fprintf(out, "  Stage:     %s %s\n", job.Stage, formatProgress(job.Progress))
	if job.Message != "" {
		fmt.Fprintf(out, "  Message:   %s\n", job.Message)
	}
	if job.CancelRequested {
		fmt.Fprintln(out, "  Cancel:    requested")
	}
	if job.RequestID != "" {
		fmt.Fprintf(out, "  Request:   %s\n", job.RequestID)
	}
	if job.ResultPath != "" {
		fmt.Fprintf(out, "  Output:    %s\n", job.ResultPath)
	}
	if job.Result != nil {
		if job.Result.DetectedLanguage != "" {
			fmt.Fprintf(out, "  Detected:  %s\n", job.Result.DetectedLanguage)
		}
		for _, d := range job.Result.Degradations {
			fmt.Fprintf(out, "  Degraded:  %s (%s)\n", d.Kind, d.Message)
		}
	}
	if job.Error != "" {
		fmt.Fprintf(out, "  Error:     [%s] %s\n", job.Kind, job.Error)
	}
}

func showDaemonStatus(cmd *cobra.Command, ctx *commandContext) error {
	out := cmd.OutOrStdout()
	client := ctx.opsClient()
	if client == nil {
		return errors.New("ops listener disabled (ops.bind is empty); use `dubber list`")
	}
	status, err := client.Status(cmd.Context())
	if err != nil {
		if ctx.jsonOutput() {
			return writeJSON(cmd, map[string]any{"running": false, "error": err.Error()})
		}
		fmt.Fprintf(out, "Daemon not reachable: %v\n", err)
		return nil
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, status)
	}
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Running", statusOK, yesNo(status.Running), colorize))
	fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d (%d busy)", status.Workers, len(status.Active)), colorize))
	uptime := time.Duration(status.UptimeSeconds) * time.Second
	fmt.Fprintln(out, renderStatusLine("Uptime", statusInfo, uptime.String(), colorize))
	if status.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
	}
	for _, line := range renderSectionHeader("Adapters", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, h := range status.Stages {
		kind := statusOK
		if !h.Ready {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(h.Name, kind, h.Detail, colorize))
	}
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, st := range dubbing.AllStages() {
		if n := status.Queue[string(st)]; n > 0 {
			fmt.Fprintln(out, renderStatusLine(st.Label(), statusInfo, fmt.Sprintf("%d", n), colorize))
		}
	}
	return nil
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Request cancellation of jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withJobs(cmd, func(api jobAPI) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					ok, err := api.Cancel(cmd.Context(), id)
					if err != nil {
						return err
					}
					if ok {
						fmt.Fprintf(out, "Cancellation requested for job %d\n", id)
					} else {
						fmt.Fprintf(out, "Job %d is unknown or already finished\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var stages []string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseStages(stages); err != nil {
				return err
			}
			return ctx.withJobs(cmd, func(api jobAPI) error {
				items, err := api.List(cmd.Context(), stages)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderJobTable(items, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&stages, "stage", "s", nil, "Only show jobs in these stages")
	return cmd
}

func renderJobTable(items []opsserver.JobResponse, now time.Time) string {
	headers := []string{"ID", "Input", "Target", "Stage", "Progress", "Updated", "Result"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		result := item.ResultPath
		if item.Error != "" {
			result = string(item.Kind)
		}
		if item.Result != nil && item.Result.Degraded() {
			result += " (degraded)"
		}
		stage := item.Stage
		if item.CancelRequested && item.Stage != string(dubbing.StageFailed) && item.Stage != string(dubbing.StageDone) {
			stage += " (cancelling)"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			truncateMiddle(item.InputPath, 48),
			item.TargetLanguage,
			stage,
			formatProgress(item.Progress),
			formatAge(item.UpdatedAt, now),
			truncateMiddle(result, 48),
		})
	}
	return renderTable(headers, rows, 0, 4)
}
