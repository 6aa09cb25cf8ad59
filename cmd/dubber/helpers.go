package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dubber/internal/dubbing"
)

func parseStages(values []string) ([]dubbing.Stage, error) {
	var out []dubbing.Stage
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			st, ok := dubbing.ParseStage(part)
			if !ok {
				return nil, fmt.Errorf("unknown stage %q", part)
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func formatProgress(p float64) string {
	return fmt.Sprintf("%3.0f%%", p*100)
}

func formatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncateMiddle(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	keep := (max - 3) / 2
	return s[:keep] + "..." + s[len(s)-(max-3-keep):]
}
