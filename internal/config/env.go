package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that take priority over the
// config file. Empty values leave the file setting untouched.
type envOverrides struct {
	StagingDir     string `env:"DUBBER_STAGING_DIR"`
	OutputDir      string `env:"DUBBER_OUTPUT_DIR"`
	LogDir         string `env:"DUBBER_LOG_DIR"`
	InboxDir       string `env:"DUBBER_INBOX_DIR"`
	Workers        int    `env:"DUBBER_WORKERS"`
	TargetLanguage string `env:"DUBBER_TARGET_LANGUAGE"`
	LogLevel       string `env:"DUBBER_LOG_LEVEL"`
	LogFormat      string `env:"DUBBER_LOG_FORMAT"`
	OpsBind        string `env:"DUBBER_OPS_BIND"`
	OpsToken       string `env:"DUBBER_OPS_TOKEN"`
	NtfyTopic      string `env:"DUBBER_NTFY_TOPIC"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	HFToken        string `env:"HF_TOKEN"`
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	setString(&c.Paths.StagingDir, o.StagingDir)
	setString(&c.Paths.OutputDir, o.OutputDir)
	setString(&c.Paths.LogDir, o.LogDir)
	setString(&c.Paths.InboxDir, o.InboxDir)
	setString(&c.Pipeline.DefaultTargetLanguage, o.TargetLanguage)
	setString(&c.Logging.Level, o.LogLevel)
	setString(&c.Logging.Format, o.LogFormat)
	setString(&c.Ops.Bind, o.OpsBind)
	setString(&c.Ops.Token, o.OpsToken)
	setString(&c.Notifications.NtfyTopic, o.NtfyTopic)
	setString(&c.OpenAI.APIKey, o.OpenAIAPIKey)
	setString(&c.OpenAI.BaseURL, o.OpenAIBaseURL)
	setString(&c.Transcription.HFToken, o.HFToken)
	if o.Workers > 0 {
		c.Workflow.Workers = o.Workers
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
