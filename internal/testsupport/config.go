package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubber/internal/config"
)

// ConfigOption adjusts a generated test config.
type ConfigOption func(base string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: staging,
// output and log directories live under it and the ops listener binds an
// ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Ops.Bind = "127.0.0.1:0"
	for _, opt := range opts {
		opt(base, &cfg)
	}
	return &cfg
}

// WithInbox enables the inbox watcher on <base>/inbox.
func WithInbox() ConfigOption {
	return func(base string, cfg *config.Config) {
		cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	}
}

// BaseDir returns the temp root behind a config from NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// StubBinary writes an executable shell script named name into a temp
// directory and returns its path. body runs after "#!/bin/sh"; an empty body
// exits 0.
func StubBinary(t testing.TB, name, body string) string {
	t.Helper()
	if strings.TrimSpace(body) == "" {
		body = "exit 0"
	}
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}
