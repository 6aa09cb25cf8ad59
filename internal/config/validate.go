package config

import (
	"errors"
	"fmt"
	"strings"

	"dubber/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateAdapters(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.staging_dir")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers > 16 {
		return fmt.Errorf("workflow.workers must be between 1 and 16, got %d", c.Workflow.Workers)
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if !language.IsAuto(c.Pipeline.DefaultTargetLanguage) && !language.Supported(c.Pipeline.DefaultTargetLanguage) {
		return fmt.Errorf("pipeline.default_target_language %q is not supported", c.Pipeline.DefaultTargetLanguage)
	}
	if c.Pipeline.SoftDeadlineMinutes < 0 || c.Pipeline.HardDeadlineMinutes < 0 {
		return errors.New("pipeline deadlines must not be negative")
	}
	if c.Pipeline.HardDeadlineMinutes > 0 && c.Pipeline.SoftDeadlineMinutes > c.Pipeline.HardDeadlineMinutes {
		return errors.New("pipeline.soft_deadline_minutes must not exceed pipeline.hard_deadline_minutes")
	}
	if c.Pipeline.SmoothingWindow%2 == 0 {
		return fmt.Errorf("pipeline.smoothing_window must be odd, got %d", c.Pipeline.SmoothingWindow)
	}
	if c.Pipeline.VoiceTargetDB > 0 {
		return errors.New("pipeline.voice_target_db must be at or below 0 dBFS")
	}
	return nil
}

func (c *Config) validateAdapters() error {
	switch c.Transcription.Provider {
	case "whisperx":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return errors.New("transcription.provider openai requires openai.api_key (or OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("transcription.provider must be whisperx or openai, got %q", c.Transcription.Provider)
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	switch c.Synthesis.FallbackProvider {
	case "tacotron":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return errors.New("synthesis.fallback_provider openai requires openai.api_key (or OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("synthesis.fallback_provider must be tacotron or openai, got %q", c.Synthesis.FallbackProvider)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
