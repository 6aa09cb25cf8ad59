package audiomix

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ErrInvalidWAV reports a file that is not a readable PCM WAV.
var ErrInvalidWAV = errors.New("invalid wav file")

// Load decodes a PCM WAV file (8, 16, 24 or 32 bit) into a Buffer.
func Load(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("%w: %s", ErrInvalidWAV, filepath.Base(path))
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return Buffer{}, fmt.Errorf("%w: %s uses format %d, want PCM", ErrInvalidWAV, filepath.Base(path), dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode wav: %w", err)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float64(audio.IntMaxSignedValue(bitDepth))
	if scale == 0 {
		return Buffer{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}

	out := Buffer{
		Samples:    make([]float64, len(pcm.Data)),
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
	}
	for i, v := range pcm.Data {
		if bitDepth == 8 {
			// 8-bit WAV samples are unsigned around 128.
			v -= 128
		}
		out.Samples[i] = clampUnit(float64(v) / scale)
	}
	// Drop a trailing partial frame from truncated files.
	if extra := len(out.Samples) % max(out.Channels, 1); extra != 0 {
		out.Samples = out.Samples[:len(out.Samples)-extra]
	}
	if err := out.Validate(); err != nil {
		return Buffer{}, err
	}
	return out, nil
}

// Save encodes b as 16-bit PCM WAV, creating parent directories as needed.
// Samples outside [-1, 1] are clamped.
func Save(path string, b Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create wav directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	const bitDepth = 16
	scale := float64(audio.IntMaxSignedValue(bitDepth))
	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		data[i] = int(math.Round(clampUnit(s) * scale))
	}

	enc := wav.NewEncoder(f, b.SampleRate, bitDepth, b.Channels, wavFormatPCM)
	writeErr := enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: b.Channels, SampleRate: b.SampleRate},
		SourceBitDepth: bitDepth,
	})
	closeErr := enc.Close()
	fileErr := f.Close()
	switch {
	case writeErr != nil:
		return fmt.Errorf("encode wav: %w", writeErr)
	case closeErr != nil:
		return fmt.Errorf("finalize wav: %w", closeErr)
	case fileErr != nil:
		return fmt.Errorf("close wav: %w", fileErr)
	}
	return nil
}

func clampUnit(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case math.IsNaN(v):
		return 0
	}
	return v
}
