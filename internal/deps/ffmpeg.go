package deps

import (
	"context"
	"fmt"
	"strings"

	"dubber/internal/services"
)

// RequiredEncoders are the ffmpeg encoders the pipeline invokes: PCM for
// intermediate WAV files and AAC for the remuxed video track.
var RequiredEncoders = []string{"pcm_s16le", "aac"}

// CheckFFmpegEncoders asks ffmpeg which encoders it was built with and
// reports any the pipeline needs that are missing.
func CheckFFmpegEncoders(ctx context.Context, binary string, runner services.CommandRunner) Status {
	binary = strings.TrimSpace(binary)
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     binary,
		Description: strings.Join(RequiredEncoders, ", "),
	}
	if binary == "" {
		result.Detail = "command not configured"
		return result
	}
	out, err := services.RunnerOrDefault(runner)(ctx, binary, "-hide_banner", "-encoders")
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	available := parseEncoders(string(out))
	var missing []string
	for _, name := range RequiredEncoders {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseEncoders reads `ffmpeg -encoders` output. Listing lines look like
// " A....D aac                  AAC (Advanced Audio Coding)".
func parseEncoders(output string) map[string]struct{} {
	encoders := make(map[string]struct{})
	pastHeader := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "------") {
			pastHeader = true
			continue
		}
		if !pastHeader {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}
