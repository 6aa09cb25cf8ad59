package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dubber/internal/services"
	"dubber/internal/stage"
)

// Extraction output format: 16-bit PCM at CD rate, stereo.
const (
	SampleRate = 44100
	Channels   = 2
)

// Extractor pulls the audio track out of video files with ffmpeg.
type Extractor struct {
	binary string
	run    services.CommandRunner
}

// NewExtractor returns an Extractor using binary (default "ffmpeg").
func NewExtractor(binary string, runner services.CommandRunner) *Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Extractor{binary: binary, run: services.RunnerOrDefault(runner)}
}

// ExtractArgs builds the ffmpeg arguments for a full-track extraction.
func ExtractArgs(input, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-y",
		output,
	}
}

// ExtractAudio writes the audio of input to output as WAV.
func (e *Extractor) ExtractAudio(ctx context.Context, input, output string) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return services.Wrap(services.ErrValidation, "extracting_audio", "extract", "input and output paths are required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("ffmpeg extract: ensure output dir: %w", err)
	}
	if _, err := e.run(ctx, e.binary, ExtractArgs(input, output)...); err != nil {
		return services.Wrap(services.ErrExternalTool, "extracting_audio", "ffmpeg", "audio extraction failed", err)
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		if err == nil {
			err = errors.New("empty output")
		}
		return services.Wrap(services.ErrExternalTool, "extracting_audio", "ffmpeg", "ffmpeg produced no audio", err)
	}
	return nil
}

// HealthCheck reports whether the ffmpeg binary resolves.
func (e *Extractor) HealthCheck(context.Context) stage.Health {
	return services.BinaryHealth("extractor", e.binary)
}
