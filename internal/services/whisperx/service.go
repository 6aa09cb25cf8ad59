package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/dubbing"
	"dubber/internal/language"
	"dubber/internal/services"
	"dubber/internal/stage"
)

const stageName = "transcribing"

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg Config
	run services.CommandRunner
}

// NewService creates a WhisperX service with the given configuration. A nil
// runner executes uvx with the torch legacy load flag set.
func NewService(cfg Config, runner services.CommandRunner) *Service {
	if strings.TrimSpace(cfg.UVX) == "" {
		cfg.UVX = "uvx"
	}
	if runner == nil {
		runner = services.RunCommandWithEnv(services.TorchLegacyLoadEnv)
	}
	return &Service{cfg: cfg, run: runner}
}

func (s *Service) model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe runs WhisperX on audioPath, writing its JSON under workDir, and
// returns the detected language and word-timed segments.
func (s *Service) Transcribe(ctx context.Context, audioPath, workDir string) (dubbing.Transcription, error) {
	var result dubbing.Transcription
	if audioPath == "" {
		return result, services.Wrap(services.ErrValidation, stageName, "whisperx", "audio path required", nil)
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if _, err := s.run(ctx, s.cfg.UVX, s.buildArgs(audioPath, workDir)...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "whisperx", "transcription failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	payload, err := loadPayload(filepath.Join(workDir, baseName+".json"))
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "whisperx", "read transcript", err)
	}

	result.Segments = payload.segments()
	result.Text = dubbing.JoinSegments(result.Segments)
	result.Language = language.Normalize(payload.Language)
	result.Confidence = dubbing.Confidence(result.Segments)
	return result, nil
}

// HealthCheck reports whether uvx resolves.
func (s *Service) HealthCheck(context.Context) stage.Health {
	return services.BinaryHealth("transcriber", s.cfg.UVX)
}

// buildArgs constructs the uvx command arguments for WhisperX. No language
// flag is passed so WhisperX detects it.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)
	args = append(args, services.UVXIndexArgs(s.cfg.CUDAEnabled)...)

	args = append(args, "whisperx", source, "--model", s.model(), "--output_dir", outputDir)
	for _, flag := range decodeFlags {
		args = append(args, flag[0], flag[1])
	}

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", services.TorchDevice(true))
	} else {
		args = append(args, "--device", services.TorchDevice(false), "--compute_type", cpuComputeType)
	}
	return args
}

type word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []word  `json:"words"`
}

// payload is the JSON structure from WhisperX output.
type payload struct {
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
}

func (p payload) segments() []dubbing.Segment {
	out := make([]dubbing.Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		converted := dubbing.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, w := range seg.Words {
			converted.Words = append(converted.Words, dubbing.Word{
				Word:        strings.TrimSpace(w.Word),
				Start:       w.Start,
				End:         w.End,
				Probability: w.Score,
			})
		}
		out = append(out, converted)
	}
	return out
}

func loadPayload(jsonPath string) (payload, error) {
	var p payload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p, nil
}
