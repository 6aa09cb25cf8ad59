package services

import (
	"fmt"
	"os/exec"
	"strings"

	"dubber/internal/stage"
)

// BinaryHealth reports a stage adapter ready when binary resolves on PATH.
func BinaryHealth(name, binary string) stage.Health {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return stage.Unhealthy(name, "command not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
	}
	return stage.Healthy(name)
}
