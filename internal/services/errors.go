package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dubber/internal/dubbing"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTimeout           = errors.New("timeout")
	ErrCancelled         = errors.New("cancelled")
	ErrTransient         = errors.New("transient failure")
)

// Wrap tags err with marker, one of the sentinels above, and prefixes the
// non-empty parts of stage, operation and message. A nil marker is treated
// as ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinNonEmpty(": ", stage, operation, message)
	if detail == "" {
		detail = "service failure"
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the failure kind recorded on a job. Deadline and
// cancellation markers win over the stage kind; input markers are only
// meaningful during validation but are honoured wherever they appear.
func Classify(err error, stageKind dubbing.ErrorKind) dubbing.ErrorKind {
	switch {
	case err == nil:
		return stageKind
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return dubbing.KindTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return dubbing.KindCancelled
	case errors.Is(err, ErrNotFound):
		return dubbing.KindInputNotFound
	case errors.Is(err, ErrUnsupportedFormat):
		return dubbing.KindUnsupportedFormat
	case stageKind == "":
		return dubbing.KindInternal
	default:
		return stageKind
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
