package demucs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubber/internal/services"
)

func TestSeparateBuildsArgsAndFindsStem(t *testing.T) {
	work := t.TempDir()
	input := "/staging/job-1/extracted.wav"
	var got []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "uvx" {
			t.Fatalf("unexpected binary %q", name)
		}
		got = args
		stem := filepath.Join(work, "htdemucs", "extracted", "vocals.wav")
		if err := os.MkdirAll(filepath.Dir(stem), 0o755); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(stem, []byte("RIFF"), 0o644)
	}
	s := New(Config{}, runner)
	vocals, err := s.Separate(context.Background(), input, work)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if vocals != filepath.Join(work, "htdemucs", "extracted", "vocals.wav") {
		t.Fatalf("unexpected vocals path %q", vocals)
	}
	joined := strings.Join(got, " ")
	for _, want := range []string{"demucs", "--two-stems vocals", "-n htdemucs", "-d cpu", "-o " + work, input} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestSeparateCUDAArgs(t *testing.T) {
	s := New(Config{CUDAEnabled: true, Model: "mdx_extra"}, func(context.Context, string, ...string) ([]byte, error) { return nil, nil })
	joined := strings.Join(s.buildArgs("in.wav", "/w"), " ")
	if !strings.Contains(joined, services.CUDAIndexURL) || !strings.Contains(joined, "-d cuda") || !strings.Contains(joined, "-n mdx_extra") {
		t.Fatalf("unexpected cuda args %q", joined)
	}
}

func TestSeparateFailures(t *testing.T) {
	failing := func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit status 1") }
	if _, err := New(Config{}, failing).Separate(context.Background(), "in.wav", t.TempDir()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	silent := func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	if _, err := New(Config{}, silent).Separate(context.Background(), "in.wav", t.TempDir()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected missing stem error, got %v", err)
	}
}
