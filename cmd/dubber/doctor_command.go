package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/daemon"
	"dubber/internal/deps"
	"dubber/internal/logging"
)

type doctorReport struct {
	Binaries []deps.Status `json:"binaries"`
	Encoders deps.Status   `json:"encoders"`
	Adapters []doctorCheck `json:"adapters"`
	Daemon   *doctorCheck  `json:"daemon,omitempty"`
	Problems int           `json:"problems"`
}

type doctorCheck struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, adapter configuration and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			report := doctorReport{
				Binaries: deps.CheckBinaries(deps.Requirements(cfg)),
				Encoders: deps.CheckFFmpegEncoders(checkCtx, cfg.Tools.FFmpeg, nil),
			}
			report.Problems += len(deps.Missing(report.Binaries))
			if !report.Encoders.Available {
				report.Problems++
			}
			for _, h := range daemon.BuildAdapters(cfg, logging.NewNop()).HealthChecks(checkCtx) {
				report.Adapters = append(report.Adapters, doctorCheck{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
				if !h.Ready {
					report.Problems++
				}
			}
			if client := ctx.opsClient(); client != nil {
				check := doctorCheck{Name: "dubberd " + cfg.Ops.Bind}
				if ready, err := client.Ready(checkCtx); err != nil {
					check.Detail = "not reachable"
				} else {
					check.Ready = ready.Status == "ready"
					check.Detail = ready.Status
				}
				report.Daemon = &check
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			renderDoctor(cmd, report)
			if report.Problems > 0 {
				return fmt.Errorf("%d problem(s) found", report.Problems)
			}
			return nil
		},
	}
}

func renderDoctor(cmd *cobra.Command, report doctorReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, s := range report.Binaries {
		kind, msg := statusOK, s.Command
		if !s.Available {
			kind, msg = statusError, s.Detail
			if s.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(out, renderStatusLine(s.Name, kind, msg, colorize))
	}
	encKind, encMsg := statusOK, report.Encoders.Description
	if !report.Encoders.Available {
		encKind, encMsg = statusError, report.Encoders.Detail
	}
	fmt.Fprintln(out, renderStatusLine(report.Encoders.Name, encKind, encMsg, colorize))

	for _, line := range renderSectionHeader("Adapters", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, c := range report.Adapters {
		kind := statusOK
		if !c.Ready {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(c.Name, kind, c.Detail, colorize))
	}

	if report.Daemon != nil {
		for _, line := range renderSectionHeader("Daemon", colorize) {
			fmt.Fprintln(out, line)
		}
		kind := statusOK
		if !report.Daemon.Ready {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(report.Daemon.Name, kind, report.Daemon.Detail, colorize))
	}
}
