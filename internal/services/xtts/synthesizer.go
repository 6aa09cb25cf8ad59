package xtts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/language"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Model shorthands accepted in config, resolved to Coqui model names.
const (
	ModelXTTSv2    = "xtts_v2"
	ModelTacotron2 = "tacotron2-DDC"

	coquiPackage = "coqui-tts"
	tosAgreedEnv = "COQUI_TOS_AGREED=1"
	stageName    = "synthesizing"
)

var modelNames = map[string]string{
	ModelXTTSv2:    "tts_models/multilingual/multi-dataset/xtts_v2",
	ModelTacotron2: "tts_models/en/ljspeech/tacotron2-DDC",
}

// ResolveModel expands a shorthand to the full Coqui model name. Names
// that already contain a slash pass through.
func ResolveModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = ModelXTTSv2
	}
	if strings.Contains(model, "/") {
		return model
	}
	if full, ok := modelNames[model]; ok {
		return full
	}
	return model
}

// Config captures runtime settings for the Coqui TTS CLI.
type Config struct {
	UVX         string
	Model       string
	CUDAEnabled bool
	// Cloning passes the reference sample as --speaker_wav. Single speaker
	// models such as Tacotron2 must run with cloning off.
	Cloning bool
}

// Synthesizer runs the Coqui tts command through uvx.
type Synthesizer struct {
	cfg   Config
	model string
	run   services.CommandRunner
}

// New returns a Synthesizer. A nil runner executes uvx with the torch legacy
// load and license acknowledgement variables set.
func New(cfg Config, runner services.CommandRunner) *Synthesizer {
	if strings.TrimSpace(cfg.UVX) == "" {
		cfg.UVX = "uvx"
	}
	if runner == nil {
		runner = services.RunCommandWithEnv(services.TorchLegacyLoadEnv, tosAgreedEnv)
	}
	return &Synthesizer{cfg: cfg, model: ResolveModel(cfg.Model), run: runner}
}

// NewCloning returns the primary XTTS synthesizer.
func NewCloning(cfg Config, runner services.CommandRunner) *Synthesizer {
	cfg.Cloning = true
	return New(cfg, runner)
}

// Model returns the resolved Coqui model name.
func (s *Synthesizer) Model() string {
	return s.model
}

func (s *Synthesizer) buildArgs(req stage.SynthesisRequest) []string {
	args := services.UVXIndexArgs(s.cfg.CUDAEnabled)
	args = append(args,
		"--from", coquiPackage,
		"tts",
		"--model_name", s.model,
		"--text", req.Text,
		"--out_path", req.Output,
	)
	if s.cfg.Cloning {
		args = append(args, "--speaker_wav", req.Reference)
		if lang := language.Normalize(req.Language); lang != "" && lang != language.Auto {
			args = append(args, "--language_idx", lang)
		}
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--use_cuda", "true")
	}
	return args
}

// Synthesize renders req.Text into req.Output.
func (s *Synthesizer) Synthesize(ctx context.Context, req stage.SynthesisRequest) error {
	if strings.TrimSpace(req.Text) == "" || req.Output == "" {
		return services.Wrap(services.ErrValidation, stageName, "coqui tts", "text and output are required", nil)
	}
	if s.cfg.Cloning && req.Reference == "" {
		return services.Wrap(services.ErrValidation, stageName, "coqui tts", "speaker reference required for cloning", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return fmt.Errorf("coqui tts: ensure output dir: %w", err)
	}
	if _, err := s.run(ctx, s.cfg.UVX, s.buildArgs(req)...); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "coqui tts", "synthesis failed", err)
	}
	info, err := os.Stat(req.Output)
	if err == nil && info.Size() == 0 {
		err = errors.New("empty file")
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "coqui tts", "synthesized audio missing", err)
	}
	return nil
}

// HealthCheck reports whether uvx resolves.
func (s *Synthesizer) HealthCheck(context.Context) stage.Health {
	name := "fallback_synthesizer"
	if s.cfg.Cloning {
		name = "synthesizer"
	}
	return services.BinaryHealth(name, s.cfg.UVX)
}
