package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	// InboxDir enables the auto-submit watcher when set.
	InboxDir string `toml:"inbox_dir"`
}

// Workflow contains configuration for daemon worker lanes and timing.
type Workflow struct {
	Workers           int `toml:"workers"`
	QueuePollInterval int `toml:"queue_poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
	StaleStagingHours int `toml:"stale_staging_hours"`
}

// Pipeline contains per-run behaviour of the dubbing orchestrator.
type Pipeline struct {
	DefaultTargetLanguage string  `toml:"default_target_language"`
	SoftDeadlineMinutes   int     `toml:"soft_deadline_minutes"`
	HardDeadlineMinutes   int     `toml:"hard_deadline_minutes"`
	SmoothingWindow       int     `toml:"smoothing_window"`
	NormalizeVoice        bool    `toml:"normalize_voice"`
	VoiceTargetDB         float64 `toml:"voice_target_db"`
	KeepIntermediates     bool    `toml:"keep_intermediates"`
}

// Tools names the external executables the stage adapters shell out to.
type Tools struct {
	FFmpeg      string `toml:"ffmpeg"`
	FFprobe     string `toml:"ffprobe"`
	UVX         string `toml:"uvx"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
}

// Separation configures the Demucs vocal separator.
type Separation struct {
	Model string `toml:"model"`
}

// Transcription configures speech-to-text.
type Transcription struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	VADMethod string `toml:"vad_method"`
	HFToken   string `toml:"hf_token"`
}

// OpenAI contains shared connection settings for OpenAI compatible APIs.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation configures the chat-completion translator.
type Translation struct {
	Model         string `toml:"model"`
	RetryAttempts int    `toml:"retry_attempts"`
}

// Synthesis configures the cloning synthesizer and its fallback.
type Synthesis struct {
	Model            string `toml:"model"`
	FallbackProvider string `toml:"fallback_provider"`
	FallbackModel    string `toml:"fallback_model"`
	OpenAIModel      string `toml:"openai_model"`
	OpenAIVoice      string `toml:"openai_voice"`
}

// Ops configures the health and metrics HTTP listener.
type Ops struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications configures ntfy job outcome alerts. An empty topic disables
// them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dubber.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, log and inbox directories
//   - Workflow: worker lanes, polling intervals and heartbeats
//   - Pipeline: deadlines, default language and DSP tunables
//   - Tools: ffmpeg, ffprobe and uvx executables
//   - Separation, Transcription, Translation, Synthesis: stage adapters
//   - OpenAI: shared credentials for translation and fallbacks
//   - Ops: health/metrics listener
//   - Notifications: ntfy alerts for finished jobs
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Tools         Tools         `toml:"tools"`
	Separation    Separation    `toml:"separation"`
	Transcription Transcription `toml:"transcription"`
	OpenAI        OpenAI        `toml:"openai"`
	Translation   Translation   `toml:"translation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Ops           Ops           `toml:"ops"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load resolves the config file, then layers sources in order: defaults, a
// .env file beside the config (or in the working directory), the TOML file
// when it exists, and DUBBER_* environment variables. It returns the
// normalized, validated config, the resolved path and whether that file
// existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	loadDotEnv(resolved)

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	for _, step := range []func() error{cfg.applyEnv, cfg.normalize, cfg.Validate} {
		if err := step(); err != nil {
			return nil, "", false, err
		}
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if isFile(candidate) {
			// Existing environment variables always win over .env entries.
			_ = godotenv.Load(candidate)
		}
	}
}

// resolveConfigPath honours an explicit path even when it does not exist yet.
// Without one it prefers the user config, then ./dubber.toml, and reports the
// user config location when neither exists.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, err := os.Stat(expanded); {
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	localPath, err := filepath.Abs("dubber.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if isFile(candidate) {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir}
	if c.Paths.InboxDir != "" {
		dirs = append(dirs, c.Paths.InboxDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the sqlite database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "dubberd.lock")
}

// SoftDeadline is the elapsed run time after which a warning is logged.
func (c *Config) SoftDeadline() time.Duration {
	return time.Duration(c.Pipeline.SoftDeadlineMinutes) * time.Minute
}

// HardDeadline is the elapsed run time after which a job is aborted.
func (c *Config) HardDeadline() time.Duration {
	return time.Duration(c.Pipeline.HardDeadlineMinutes) * time.Minute
}

// OpenAITimeout returns the request timeout for OpenAI compatible calls.
func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

// expandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
