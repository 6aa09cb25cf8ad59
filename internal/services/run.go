package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool and returns its combined output.
// Adapters accept one so tests can replace process execution.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// RunCommand is the default CommandRunner backed by os/exec. Non-zero exits
// are reported with the trimmed tool output appended.
func RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return runWithEnv(ctx, nil, name, args...)
}

// RunCommandWithEnv returns a CommandRunner that appends extra KEY=VALUE
// pairs to the inherited environment. Keys already set by the caller's
// environment are left alone.
func RunCommandWithEnv(extra ...string) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return runWithEnv(ctx, extra, name, args...)
	}
}

func runWithEnv(ctx context.Context, extra []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if len(extra) > 0 {
		env := os.Environ()
		for _, kv := range extra {
			key, _, _ := strings.Cut(kv, "=")
			if _, set := os.LookupEnv(key); !set {
				env = append(env, kv)
			}
		}
		cmd.Env = env
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", name, ctxErr)
		}
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// RunnerOrDefault returns runner, or RunCommand when runner is nil.
func RunnerOrDefault(runner CommandRunner) CommandRunner {
	if runner == nil {
		return RunCommand
	}
	return runner
}
