package xtts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubber/internal/services"
	"dubber/internal/stage"
)

func writingRunner(t *testing.T, captured *[]string) services.CommandRunner {
	t.Helper()
	return func(_ context.Context, _ string, args ...string) ([]byte, error) {
		*captured = args
		for i, a := range args {
			if a == "--out_path" && i+1 < len(args) {
				return nil, os.WriteFile(args[i+1], []byte("RIFF"), 0o644)
			}
		}
		return nil, errors.New("no out path")
	}
}

func TestCloningArgs(t *testing.T) {
	var args []string
	s := NewCloning(Config{}, writingRunner(t, &args))
	out := filepath.Join(t.TempDir(), "synth.wav")
	err := s.Synthesize(context.Background(), stage.SynthesisRequest{
		Text: "Hola mundo", Language: "Spanish", Reference: "/w/vocals.wav", Output: out,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--from coqui-tts tts",
		"--model_name tts_models/multilingual/multi-dataset/xtts_v2",
		"--speaker_wav /w/vocals.wav",
		"--language_idx es",
		"--out_path " + out,
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestFallbackSkipsCloning(t *testing.T) {
	var args []string
	s := New(Config{Model: ModelTacotron2, CUDAEnabled: true}, writingRunner(t, &args))
	err := s.Synthesize(context.Background(), stage.SynthesisRequest{
		Text: "Hello", Language: "en", Reference: "/w/vocals.wav", Output: filepath.Join(t.TempDir(), "o.wav"),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "--speaker_wav") || strings.Contains(joined, "--language_idx") {
		t.Fatalf("fallback should not clone: %q", joined)
	}
	if !strings.Contains(joined, "tacotron2-DDC") || !strings.Contains(joined, "--use_cuda true") {
		t.Fatalf("unexpected fallback args %q", joined)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	failing := func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit 1") }
	req := stage.SynthesisRequest{Text: "x", Reference: "r.wav", Output: filepath.Join(t.TempDir(), "o.wav")}
	if err := NewCloning(Config{}, failing).Synthesize(context.Background(), req); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	req.Reference = ""
	if err := NewCloning(Config{}, failing).Synthesize(context.Background(), req); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResolveModel(t *testing.T) {
	cases := map[string]string{
		"":                       "tts_models/multilingual/multi-dataset/xtts_v2",
		"tacotron2-DDC":          "tts_models/en/ljspeech/tacotron2-DDC",
		"tts_models/de/thorsten": "tts_models/de/thorsten",
	}
	for in, want := range cases {
		if got := ResolveModel(in); got != want {
			t.Fatalf("ResolveModel(%q) = %q, want %q", in, got, want)
		}
	}
}
