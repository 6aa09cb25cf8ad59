package config

import (
	"fmt"
	"strings"

	"dubber/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizePipeline()
	c.normalizeTools()
	c.normalizeAdapters()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.InboxDir = strings.TrimSpace(c.Paths.InboxDir)
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.StaleStagingHours <= 0 {
		c.Workflow.StaleStagingHours = defaultStaleStagingHours
	}
}

func (c *Config) normalizePipeline() {
	lang := strings.TrimSpace(c.Pipeline.DefaultTargetLanguage)
	if lang == "" {
		lang = defaultTargetLanguage
	}
	if normalized := language.Normalize(lang); normalized != "" {
		lang = normalized
	}
	c.Pipeline.DefaultTargetLanguage = lang
	if c.Pipeline.SmoothingWindow <= 0 {
		c.Pipeline.SmoothingWindow = defaultSmoothingWindow
	}
	if c.Pipeline.VoiceTargetDB == 0 {
		c.Pipeline.VoiceTargetDB = defaultVoiceTargetDB
	}
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = fallback(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = fallback(c.Tools.FFprobe, defaultFFprobe)
	c.Tools.UVX = fallback(c.Tools.UVX, defaultUVX)
}

func (c *Config) normalizeAdapters() {
	c.Separation.Model = fallback(c.Separation.Model, defaultSeparationModel)

	c.Transcription.Provider = strings.ToLower(fallback(c.Transcription.Provider, defaultTranscriptionProvider))
	c.Transcription.Model = fallback(c.Transcription.Model, defaultTranscriptionModel)
	c.Transcription.VADMethod = strings.ToLower(fallback(c.Transcription.VADMethod, defaultVADMethod))
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)

	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	c.OpenAI.BaseURL = strings.TrimRight(fallback(c.OpenAI.BaseURL, defaultOpenAIBaseURL), "/")
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeoutSeconds
	}

	c.Translation.Model = fallback(c.Translation.Model, defaultTranslationModel)
	if c.Translation.RetryAttempts <= 0 {
		c.Translation.RetryAttempts = defaultTranslationRetries
	}

	c.Synthesis.Model = fallback(c.Synthesis.Model, defaultSynthesisModel)
	c.Synthesis.FallbackProvider = strings.ToLower(fallback(c.Synthesis.FallbackProvider, defaultSynthesisFallback))
	c.Synthesis.FallbackModel = fallback(c.Synthesis.FallbackModel, defaultSynthesisFallbackModel)
	c.Synthesis.OpenAIModel = fallback(c.Synthesis.OpenAIModel, defaultOpenAISpeechModel)
	c.Synthesis.OpenAIVoice = strings.ToLower(fallback(c.Synthesis.OpenAIVoice, defaultOpenAIVoice))

	c.Ops.Bind = strings.TrimSpace(c.Ops.Bind)
	c.Ops.Token = strings.TrimSpace(c.Ops.Token)

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(fallback(c.Logging.Level, defaultLogLevel))
}

func fallback(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return value
}
