package avsync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/media/ffprobe"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// AudioBitrate is the AAC bitrate used for the replacement track.
const AudioBitrate = "192k"

// Syncer remuxes a dubbed audio track onto the original picture with ffmpeg.
// The video stream is copied untouched and the output ends with the shorter
// of the two inputs.
type Syncer struct {
	ffmpeg string
	run    services.CommandRunner
	prober *ffprobe.Prober
	logger *zap.Logger
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithRunner replaces process execution for both ffmpeg and ffprobe.
func WithRunner(runner services.CommandRunner) Option {
	return func(s *Syncer) { s.run = services.RunnerOrDefault(runner) }
}

// WithProber overrides the ffprobe wrapper used by Probe.
func WithProber(p *ffprobe.Prober) Option {
	return func(s *Syncer) { s.prober = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// New returns a Syncer using the given ffmpeg and ffprobe binaries.
func New(ffmpegBinary, ffprobeBinary string, opts ...Option) *Syncer {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	s := &Syncer{ffmpeg: ffmpegBinary, run: services.RunCommand}
	for _, opt := range opts {
		opt(s)
	}
	if s.prober == nil {
		s.prober = ffprobe.New(ffprobeBinary, s.run)
	}
	s.logger = logging.NewComponentLogger(s.logger, "avsync")
	return s
}

// Args builds the ffmpeg invocation. When lang resolves to a known language
// the new audio stream is tagged with its ISO 639-2 code.
func Args(video, audio, output, lang string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
	}
	if iso3 := language.ToISO3(lang); iso3 != "und" {
		args = append(args, "-metadata:s:a:0", "language="+iso3)
	}
	return append(args, "-y", output)
}

// Sync writes output containing video's picture and audio's sound. Any
// non-zero ffmpeg exit is returned as an external tool error.
func (s *Syncer) Sync(ctx context.Context, video, audio, output, lang string) error {
	for _, p := range []string{video, audio, output} {
		if strings.TrimSpace(p) == "" {
			return services.Wrap(services.ErrValidation, "syncing", "sync", "video, audio and output paths are required", nil)
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("avsync: ensure output dir: %w", err)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("remuxing dubbed audio", zap.String("video", video), zap.String("audio", audio), zap.String("output", output))

	if _, err := s.run(ctx, s.ffmpeg, Args(video, audio, output, lang)...); err != nil {
		return services.Wrap(services.ErrExternalTool, "syncing", "ffmpeg", "remux failed", err)
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		if err == nil {
			err = errors.New("empty output")
		}
		return services.Wrap(services.ErrExternalTool, "syncing", "ffmpeg", "remux produced no file", err)
	}
	return nil
}

// Durations reports stream lengths in seconds.
type Durations struct {
	Video float64
	Audio float64
}

// Expected returns the length the -shortest output should have.
func (d Durations) Expected() float64 {
	return math.Min(d.Video, d.Audio)
}

// Probe reads video and audio durations of a container.
func (s *Syncer) Probe(ctx context.Context, path string) (Durations, error) {
	result, err := s.prober.Inspect(ctx, path)
	if err != nil {
		return Durations{}, err
	}
	return Durations{
		Video: result.Duration(ffprobe.Video),
		Audio: result.Duration(ffprobe.Audio),
	}, nil
}

// HealthCheck reports whether ffmpeg resolves.
func (s *Syncer) HealthCheck(context.Context) stage.Health {
	return services.BinaryHealth("syncer", s.ffmpeg)
}
