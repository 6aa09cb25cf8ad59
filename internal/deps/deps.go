package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"dubber/internal/config"
)

// Requirement names an executable a stage adapter shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the executables the configured adapters need. uvx
// hosts every local model, so its description follows the providers in use.
func Requirements(cfg *config.Config) []Requirement {
	models := []string{"Demucs"}
	if cfg.Transcription.Provider != "openai" {
		models = append(models, "WhisperX")
	}
	models = append(models, "Coqui TTS")
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Audio extraction, decoding and muxing"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "Stream inspection before sync"},
		{Name: "uvx", Command: cfg.Tools.UVX, Description: "Runs " + strings.Join(models, ", ")},
	}
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, resolve(req))
	}
	return results
}

func resolve(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
