package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dubber/internal/services"
)

// Codec types reported in Stream.CodecType.
const (
	Video = "video"
	Audio = "audio"
)

// Result is the subset of `ffprobe -show_format -show_streams` output the
// sync stage reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Tags       struct {
		Language string `json:"language"`
	} `json:"tags"`
}

// Format holds container level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Prober runs ffprobe through a replaceable command runner.
type Prober struct {
	binary string
	run    services.CommandRunner
}

// New returns a Prober for binary (default "ffprobe"). A nil runner executes
// the real tool.
func New(binary string, runner services.CommandRunner) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, run: services.RunnerOrDefault(runner)}
}

// Inspect probes path and decodes the JSON report.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	out, err := p.run(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// First returns the first stream of codecType.
func (r Result) First(codecType string) (Stream, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, codecType) {
			return s, true
		}
	}
	return Stream{}, false
}

// Count returns the number of streams of codecType.
func (r Result) Count(codecType string) int {
	n := 0
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, codecType) {
			n++
		}
	}
	return n
}

// Duration returns the first codecType stream's duration in seconds. Streams
// without their own duration (common for Matroska) fall back to the
// container. It is 0 when there is no such stream or nothing parses.
func (r Result) Duration(codecType string) float64 {
	s, ok := r.First(codecType)
	if !ok {
		return 0
	}
	if d := seconds(s.Duration); d > 0 {
		return d
	}
	return r.ContainerDuration()
}

// ContainerDuration returns the format duration in seconds, or 0.
func (r Result) ContainerDuration() float64 {
	return seconds(r.Format.Duration)
}

func seconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
