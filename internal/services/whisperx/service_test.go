package whisperx

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubber/internal/services"
)

const sampleJSON = `{
  "language": "es",
  "segments": [
    {"start": 0.0, "end": 1.5, "text": " Hola mundo.", "words": [
      {"word": "Hola", "start": 0.0, "end": 0.6, "score": 0.9},
      {"word": "mundo.", "start": 0.7, "end": 1.5, "score": 0.7}
    ]},
    {"start": 2.0, "end": 3.0, "text": " Adios.", "words": [
      {"word": "Adios.", "start": 2.0, "end": 3.0, "score": 0.8}
    ]}
  ]
}`

func TestTranscribeParsesOutput(t *testing.T) {
	work := t.TempDir()
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, os.WriteFile(filepath.Join(work, "vocals.json"), []byte(sampleJSON), 0o644)
	}
	svc := NewService(Config{}, runner)

	result, err := svc.Transcribe(context.Background(), "/tmp/sep/vocals.wav", work)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Language != "es" {
		t.Fatalf("language = %q", result.Language)
	}
	if result.Text != "Hola mundo. Adios." {
		t.Fatalf("text = %q", result.Text)
	}
	if len(result.Segments) != 2 || len(result.Segments[0].Words) != 2 {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
	if math.Abs(result.Confidence-0.8) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.8", result.Confidence)
	}
	joined := strings.Join(gotArgs, " ")
	if strings.Contains(joined, "--language") {
		t.Fatalf("language must be detected, args %q", joined)
	}
	for _, want := range []string{"whisperx /tmp/sep/vocals.wav", "--model large-v3", "--output_format json", "--vad_method silero", "--device cpu"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestBuildArgsPyannoteWithToken(t *testing.T) {
	svc := NewService(Config{VADMethod: VADPyannote, HFToken: "hf-123", CUDAEnabled: true}, func(context.Context, string, ...string) ([]byte, error) { return nil, nil })
	joined := strings.Join(svc.buildArgs("a.wav", "/out"), " ")
	if !strings.Contains(joined, "--hf_token hf-123") || !strings.Contains(joined, "--device cuda") {
		t.Fatalf("unexpected args %q", joined)
	}
	if strings.Contains(joined, "--compute_type") {
		t.Fatalf("cuda run should not force compute type: %q", joined)
	}
}

func TestTranscribeFailures(t *testing.T) {
	failing := func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit 1") }
	if _, err := NewService(Config{}, failing).Transcribe(context.Background(), "a.wav", t.TempDir()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	noOutput := func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	if _, err := NewService(Config{}, noOutput).Transcribe(context.Background(), "a.wav", t.TempDir()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected missing transcript error, got %v", err)
	}
	if _, err := NewService(Config{}, noOutput).Transcribe(context.Background(), "", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
