package audiomix_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"dubber/internal/audiomix"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")
	src := sine(2, 22050, 2205, 440, 0.7)

	if err := audiomix.Save(path, src); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := audiomix.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Channels != 2 || got.SampleRate != 22050 || got.Frames() != src.Frames() {
		t.Fatalf("layout: %d ch, %d Hz, %d frames", got.Channels, got.SampleRate, got.Frames())
	}
	for i := range src.Samples {
		if math.Abs(got.Samples[i]-src.Samples[i]) > 1.0/32767*1.5 {
			t.Fatalf("sample %d = %v, want %v", i, got.Samples[i], src.Samples[i])
		}
	}
}

func TestSaveClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.wav")
	b := audiomix.Buffer{Samples: []float64{2, -3, 0.5}, Channels: 1, SampleRate: 8000}
	if err := audiomix.Save(path, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := audiomix.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Samples[0] != 1 || got.Samples[1] != -1 {
		t.Fatalf("expected clamped samples, got %v", got.Samples)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not a riff file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := audiomix.Load(path); !errors.Is(err, audiomix.ErrInvalidWAV) {
		t.Fatalf("expected ErrInvalidWAV, got %v", err)
	}
}

func TestSaveRejectsInvalidBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := audiomix.Save(path, audiomix.Buffer{Channels: 0, SampleRate: 8000}); !errors.Is(err, audiomix.ErrInvalidBuffer) {
		t.Fatalf("expected ErrInvalidBuffer, got %v", err)
	}
}
