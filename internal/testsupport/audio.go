package testsupport

import (
	"math"
	"testing"

	"dubber/internal/audiomix"
)

// Tone returns a sine buffer at freq Hz.
func Tone(seconds float64, freq float64, rate, channels int) audiomix.Buffer {
	frames := int(seconds * float64(rate))
	samples := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		v := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	return audiomix.Buffer{Samples: samples, Channels: channels, SampleRate: rate}
}

// WriteTone saves a sine tone as a 16-bit WAV at path.
func WriteTone(t testing.TB, path string, seconds float64, rate, channels int) {
	t.Helper()
	if err := audiomix.Save(path, Tone(seconds, 440, rate, channels)); err != nil {
		t.Fatalf("write tone %s: %v", path, err)
	}
}
