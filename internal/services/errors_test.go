package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"dubber/internal/dubbing"
	"dubber/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "syncing", "mux", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"syncing", "mux", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		stage dubbing.ErrorKind
		want  dubbing.ErrorKind
	}{
		{"stage kind", services.Wrap(services.ErrExternalTool, "separating", "demucs", "exit 1", nil), dubbing.KindSeparationFailed, dubbing.KindSeparationFailed},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), dubbing.KindSynthesisFailed, dubbing.KindTimeout},
		{"timeout marker", services.Wrap(services.ErrTimeout, "", "", "hard limit", nil), dubbing.KindMixFailed, dubbing.KindTimeout},
		{"cancelled", context.Canceled, dubbing.KindTranscriptionFailed, dubbing.KindCancelled},
		{"not found", services.Wrap(services.ErrNotFound, "validating", "stat", "missing", nil), dubbing.KindExtractionFailed, dubbing.KindInputNotFound},
		{"unsupported", services.Wrap(services.ErrUnsupportedFormat, "validating", "", ".txt", nil), "", dubbing.KindUnsupportedFormat},
		{"no stage kind", errors.New("boom"), "", dubbing.KindInternal},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err, tc.stage); got != tc.want {
			t.Errorf("%s: Classify = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestBinaryHealth(t *testing.T) {
	if h := services.BinaryHealth("x", ""); h.Ready {
		t.Fatal("expected unconfigured binary to be unhealthy")
	}
	if h := services.BinaryHealth("x", "definitely-not-a-real-binary-42"); h.Ready || h.Detail == "" {
		t.Fatalf("expected missing binary to be unhealthy, got %+v", h)
	}
}
