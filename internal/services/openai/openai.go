package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"dubber/internal/dubbing"
	"dubber/internal/language"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Defaults for the hosted speech endpoints.
const (
	DefaultSpeechModel = string(goopenai.TTSModel1)
	DefaultVoice       = string(goopenai.VoiceNova)
	speechFormatWAV    = goopenai.SpeechResponseFormat("wav")
)

// Config selects the endpoint and models.
type Config struct {
	APIKey         string
	BaseURL        string
	SpeechModel    string
	Voice          string
	TimeoutSeconds int
}

func newAPI(cfg Config) *goopenai.Client {
	apiCfg := goopenai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		apiCfg.BaseURL = base
	}
	timeout := 2 * time.Minute
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	return goopenai.NewClientWithConfig(apiCfg)
}

// Synthesizer renders speech with a stock voice. It does not clone, so it
// serves as the fallback when the cloning synthesizer fails.
type Synthesizer struct {
	cfg Config
	api *goopenai.Client
}

// NewSynthesizer builds a Synthesizer for cfg.
func NewSynthesizer(cfg Config) *Synthesizer {
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	return &Synthesizer{cfg: cfg, api: newAPI(cfg)}
}

// Synthesize writes req.Text as a WAV file at req.Output. The voice setting
// overrides the configured voice; the reference sample is ignored.
func (s *Synthesizer) Synthesize(ctx context.Context, req stage.SynthesisRequest) error {
	if strings.TrimSpace(req.Text) == "" || req.Output == "" {
		return services.Wrap(services.ErrValidation, "synthesizing", "openai speech", "text and output are required", nil)
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "synthesizing", "openai speech", "api key required", nil)
	}
	voice := s.cfg.Voice
	if v := req.Settings.String(dubbing.SettingVoice); v != "" {
		voice = v
	}
	resp, err := s.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(s.cfg.SpeechModel),
		Input:          req.Text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: speechFormatWAV,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesizing", "openai speech", "create speech", err)
	}
	defer resp.Close()

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return fmt.Errorf("openai speech: ensure output dir: %w", err)
	}
	out, err := os.Create(req.Output)
	if err != nil {
		return fmt.Errorf("openai speech: create %s: %w", req.Output, err)
	}
	n, copyErr := io.Copy(out, resp)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesizing", "openai speech", "write audio", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrExternalTool, "synthesizing", "openai speech", "empty audio response", nil)
	}
	return nil
}

// HealthCheck reports whether an API key is configured.
func (s *Synthesizer) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return stage.Unhealthy("fallback_synthesizer", "api key not configured")
	}
	return stage.Healthy("fallback_synthesizer")
}

// Transcriber uses the hosted whisper-1 endpoint. The verbose response has
// segment timings but no word scores.
type Transcriber struct {
	cfg Config
	api *goopenai.Client
}

// NewTranscriber builds a Transcriber for cfg.
func NewTranscriber(cfg Config) *Transcriber {
	return &Transcriber{cfg: cfg, api: newAPI(cfg)}
}

// Transcribe uploads audioPath and returns the detected language and
// segments. workDir is unused.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, _ string) (dubbing.Transcription, error) {
	var result dubbing.Transcription
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return result, services.Wrap(services.ErrConfiguration, "transcribing", "openai whisper", "api key required", nil)
	}
	resp, err := t.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		FilePath: audioPath,
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribing", "openai whisper", "create transcription", err)
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, dubbing.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	result.Text = strings.TrimSpace(resp.Text)
	if result.Text == "" {
		result.Text = dubbing.JoinSegments(result.Segments)
	}
	result.Language = language.Normalize(resp.Language)
	result.Confidence = dubbing.Confidence(result.Segments)
	return result, nil
}

// HealthCheck reports whether an API key is configured.
func (t *Transcriber) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return stage.Unhealthy("transcriber", "api key not configured")
	}
	return stage.Healthy("transcriber")
}
