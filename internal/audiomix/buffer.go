package audiomix

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// PeakCeiling is the absolute amplitude that Normalize scales a buffer down to
// when its peak exceeds it.
const PeakCeiling = 0.95

var (
	// ErrInvalidBuffer reports a buffer with a non-positive channel count or
	// sample rate, or a sample slice that is not a whole number of frames.
	ErrInvalidBuffer = errors.New("invalid audio buffer")
	// ErrUnsupportedChannelLayout reports a channel count the engine cannot
	// reconcile (anything other than mono and stereo).
	ErrUnsupportedChannelLayout = errors.New("unsupported channel layout")
	// ErrInvalidFactor reports a speed factor outside [MinSpeedFactor,
	// MaxSpeedFactor].
	ErrInvalidFactor = errors.New("invalid speed factor")
	// ErrInvalidGain reports a NaN or infinite mix gain.
	ErrInvalidGain = errors.New("invalid gain")
	// ErrInvalidWindow reports an even or negative smoothing window.
	ErrInvalidWindow = errors.New("invalid smoothing window")
)

// Buffer holds decoded audio as interleaved float64 samples nominally in
// [-1, 1]. Frame i of channel c lives at Samples[i*Channels+c].
type Buffer struct {
	Samples    []float64
	Channels   int
	SampleRate int
}

// NewBuffer allocates a silent buffer with the given layout.
func NewBuffer(channels, sampleRate, frames int) Buffer {
	if frames < 0 {
		frames = 0
	}
	return Buffer{
		Samples:    make([]float64, frames*max(channels, 0)),
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

// Validate checks the buffer invariants every DSP routine relies on.
func (b Buffer) Validate() error {
	if b.Channels < 1 {
		return fmt.Errorf("%w: channels=%d", ErrInvalidBuffer, b.Channels)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate=%d", ErrInvalidBuffer, b.SampleRate)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("%w: %d samples is not a multiple of %d channels", ErrInvalidBuffer, len(b.Samples), b.Channels)
	}
	return nil
}

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.Channels < 1 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// At returns the sample for the given frame and channel.
func (b Buffer) At(frame, channel int) float64 {
	return b.Samples[frame*b.Channels+channel]
}

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	out := b
	out.Samples = append([]float64(nil), b.Samples...)
	return out
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square level across all channels.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range b.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

func validatePair(a, b Buffer) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("secondary: %w", err)
	}
	return nil
}
