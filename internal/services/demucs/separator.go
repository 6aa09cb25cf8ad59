package demucs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/services"
	"dubber/internal/stage"
)

// DefaultModel is the hybrid transformer model that splits vocals from the
// accompaniment.
const DefaultModel = "htdemucs"

// Config captures runtime settings for Demucs.
type Config struct {
	UVX         string
	Model       string
	CUDAEnabled bool
}

// Separator runs Demucs in two-stem mode through uvx.
type Separator struct {
	cfg Config
	run services.CommandRunner
}

// New returns a Separator. A nil runner executes uvx with the torch legacy
// load flag set.
func New(cfg Config, runner services.CommandRunner) *Separator {
	if strings.TrimSpace(cfg.UVX) == "" {
		cfg.UVX = "uvx"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if runner == nil {
		runner = services.RunCommandWithEnv(services.TorchLegacyLoadEnv)
	}
	return &Separator{cfg: cfg, run: runner}
}

func (s *Separator) buildArgs(input, workDir string) []string {
	args := services.UVXIndexArgs(s.cfg.CUDAEnabled)
	return append(args,
		"demucs",
		"--two-stems", "vocals",
		"-n", s.cfg.Model,
		"-d", services.TorchDevice(s.cfg.CUDAEnabled),
		"-o", workDir,
		input,
	)
}

// VocalsPath returns where Demucs writes the vocals stem for input.
func (s *Separator) VocalsPath(input, workDir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(workDir, s.cfg.Model, stem, "vocals.wav")
}

// Separate isolates the voice in input and returns the vocals stem path.
func (s *Separator) Separate(ctx context.Context, input, workDir string) (string, error) {
	if input == "" || workDir == "" {
		return "", services.Wrap(services.ErrValidation, "separating_vocals", "demucs", "input and work directory are required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("demucs: ensure work dir: %w", err)
	}
	if _, err := s.run(ctx, s.cfg.UVX, s.buildArgs(input, workDir)...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "separating_vocals", "demucs", "separation failed", err)
	}
	vocals := s.VocalsPath(input, workDir)
	if info, err := os.Stat(vocals); err != nil || info.Size() == 0 {
		if err == nil {
			err = errors.New("empty stem")
		}
		return "", services.Wrap(services.ErrExternalTool, "separating_vocals", "demucs", "vocals stem missing", err)
	}
	return vocals, nil
}

// HealthCheck reports whether uvx resolves.
func (s *Separator) HealthCheck(context.Context) stage.Health {
	return services.BinaryHealth("separator", s.cfg.UVX)
}
