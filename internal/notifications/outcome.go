package notifications

import (
	"fmt"
	"strings"

	"dubber/internal/dubbing"
	"dubber/internal/queue"
)

// JobOutcome maps a finished job to its notification. ok is false for jobs
// that have not reached a terminal stage.
func JobOutcome(job *queue.Job) (Event, Payload, bool) {
	if job == nil || !job.IsTerminal() {
		return "", nil, false
	}
	payload := Payload{
		"file":     job.InputPath,
		"language": job.TargetLanguage,
	}

	if job.Stage == dubbing.StageDone {
		result, err := job.Result()
		if err != nil || result == nil {
			return EventJobCompleted, payload, true
		}
		payload["output"] = result.OutputPath
		if !result.Degraded() {
			return EventJobCompleted, payload, true
		}
		parts := make([]string, 0, len(result.Degradations))
		for _, d := range result.Degradations {
			parts = append(parts, fmt.Sprintf("%s (%s)", d.Stage, d.Kind))
		}
		payload["degradations"] = strings.Join(parts, ", ")
		return EventJobDegraded, payload, true
	}

	failure, err := job.Failure()
	if err != nil || failure == nil {
		payload["error"] = job.ProgressMessage
		return EventJobFailed, payload, true
	}
	if failure.Kind == dubbing.KindCancelled {
		return EventJobCancelled, payload, true
	}
	payload["stage"] = string(failure.Stage)
	payload["kind"] = string(failure.Kind)
	payload["error"] = failure.Message
	return EventJobFailed, payload, true
}
