package audiomix

import (
	"fmt"
	"math"
)

// Resample converts b to targetRate using linear interpolation applied to
// each channel independently. A buffer already at targetRate is returned as
// a copy.
func Resample(b Buffer, targetRate int) (Buffer, error) {
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	if targetRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: target sample_rate=%d", ErrInvalidBuffer, targetRate)
	}
	if targetRate == b.SampleRate {
		return b.Clone(), nil
	}
	frames := int(math.Round(float64(b.Frames()) * float64(targetRate) / float64(b.SampleRate)))
	out := interpolate(b, frames, float64(b.SampleRate)/float64(targetRate))
	out.SampleRate = targetRate
	return out, nil
}

// interpolate builds a buffer of the given frame count where output frame i
// samples the source at position i*step.
func interpolate(b Buffer, frames int, step float64) Buffer {
	out := NewBuffer(b.Channels, b.SampleRate, frames)
	src := b.Frames()
	if src == 0 || frames == 0 {
		return out
	}
	last := src - 1
	for i := 0; i < frames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		frac := pos - float64(i0)
		if frac < 0 {
			frac = 0
		}
		for c := 0; c < b.Channels; c++ {
			s0 := b.Samples[i0*b.Channels+c]
			s1 := b.Samples[i1*b.Channels+c]
			out.Samples[i*b.Channels+c] = s0 + (s1-s0)*frac
		}
	}
	return out
}

// ReconcileChannels converts secondary to the channel count of primary.
// Mono is upmixed to stereo by duplication and stereo is downmixed to mono by
// averaging. Layouts with more than two channels fail with
// ErrUnsupportedChannelLayout. primary is never altered.
func ReconcileChannels(primary, secondary Buffer) (Buffer, Buffer, error) {
	if err := validatePair(primary, secondary); err != nil {
		return Buffer{}, Buffer{}, err
	}
	if primary.Channels > 2 || secondary.Channels > 2 {
		return Buffer{}, Buffer{}, fmt.Errorf("%w: %d and %d channels", ErrUnsupportedChannelLayout, primary.Channels, secondary.Channels)
	}
	if primary.Channels == secondary.Channels {
		return primary, secondary, nil
	}
	frames := secondary.Frames()
	out := NewBuffer(primary.Channels, secondary.SampleRate, frames)
	switch {
	case secondary.Channels == 1 && primary.Channels == 2:
		for i := 0; i < frames; i++ {
			s := secondary.Samples[i]
			out.Samples[2*i] = s
			out.Samples[2*i+1] = s
		}
	case secondary.Channels == 2 && primary.Channels == 1:
		for i := 0; i < frames; i++ {
			out.Samples[i] = (secondary.Samples[2*i] + secondary.Samples[2*i+1]) / 2
		}
	}
	return primary, out, nil
}

// AlignLength trims secondary to the frame count of primary or pads it with
// trailing silence. primary's length is authoritative. Both buffers must
// already share a channel count.
func AlignLength(primary, secondary Buffer) (Buffer, Buffer, error) {
	if err := validatePair(primary, secondary); err != nil {
		return Buffer{}, Buffer{}, err
	}
	if primary.Channels != secondary.Channels {
		return Buffer{}, Buffer{}, fmt.Errorf("%w: align requires matching channels (%d vs %d)", ErrUnsupportedChannelLayout, primary.Channels, secondary.Channels)
	}
	want := len(primary.Samples)
	switch {
	case len(secondary.Samples) == want:
		return primary, secondary, nil
	case len(secondary.Samples) > want:
		out := secondary
		out.Samples = append([]float64(nil), secondary.Samples[:want]...)
		return primary, out, nil
	default:
		out := secondary
		out.Samples = make([]float64, want)
		copy(out.Samples, secondary.Samples)
		return primary, out, nil
	}
}

// conform brings secondary onto primary's rate, channel count and length.
func conform(primary, secondary Buffer) (Buffer, error) {
	var err error
	if secondary.SampleRate != primary.SampleRate {
		if secondary, err = Resample(secondary, primary.SampleRate); err != nil {
			return Buffer{}, err
		}
	}
	if _, secondary, err = ReconcileChannels(primary, secondary); err != nil {
		return Buffer{}, err
	}
	if _, secondary, err = AlignLength(primary, secondary); err != nil {
		return Buffer{}, err
	}
	return secondary, nil
}

// Mix combines vocals over background. Background is the primary signal: its
// rate, channel layout and length define the output, and vocals are
// resampled, reconciled and aligned to it. The weighted sum is then passed
// through Normalize so the peak never exceeds PeakCeiling.
func Mix(vocals, background Buffer, vocalGain, backgroundGain float64) (Buffer, error) {
	if err := validatePair(background, vocals); err != nil {
		return Buffer{}, err
	}
	for _, g := range []float64{vocalGain, backgroundGain} {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidGain, g)
		}
	}
	aligned, err := conform(background, vocals)
	if err != nil {
		return Buffer{}, fmt.Errorf("conform vocals: %w", err)
	}
	out := NewBuffer(background.Channels, background.SampleRate, background.Frames())
	for i := range out.Samples {
		out.Samples[i] = aligned.Samples[i]*vocalGain + background.Samples[i]*backgroundGain
	}
	return Normalize(out), nil
}

// Normalize scales the whole buffer so its peak equals PeakCeiling when the
// peak exceeds it. Quieter buffers are returned unchanged.
func Normalize(b Buffer) Buffer {
	peak := b.Peak()
	if peak <= PeakCeiling || math.IsInf(peak, 0) || math.IsNaN(peak) {
		return b
	}
	scale := PeakCeiling / peak
	out := b.Clone()
	for i := range out.Samples {
		out.Samples[i] *= scale
	}
	return out
}

// DefaultSmoothingWindow is the moving-average width used to suppress
// separation artifacts in ExtractBackground.
const DefaultSmoothingWindow = 5

// ExtractBackground subtracts vocals from original and smooths the residual
// with a centred moving average of the given odd window (window <= 1 skips
// smoothing). Vocals are resampled and reconciled to original, then both are
// truncated to the shorter length before subtraction.
func ExtractBackground(original, vocals Buffer, window int) (Buffer, error) {
	if err := validatePair(original, vocals); err != nil {
		return Buffer{}, err
	}
	var err error
	if vocals.SampleRate != original.SampleRate {
		if vocals, err = Resample(vocals, original.SampleRate); err != nil {
			return Buffer{}, err
		}
	}
	if _, vocals, err = ReconcileChannels(original, vocals); err != nil {
		return Buffer{}, err
	}
	n := min(len(original.Samples), len(vocals.Samples))
	out := Buffer{
		Samples:    make([]float64, n),
		Channels:   original.Channels,
		SampleRate: original.SampleRate,
	}
	for i := 0; i < n; i++ {
		out.Samples[i] = original.Samples[i] - vocals.Samples[i]
	}
	if window <= 1 {
		return out, nil
	}
	return Smooth(out, window)
}

// Smooth applies a symmetric moving average of the given odd window to each
// channel. Edges are zero padded by window/2 frames so the output length
// equals the input length.
func Smooth(b Buffer, window int) (Buffer, error) {
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	if window < 1 || window%2 == 0 {
		return Buffer{}, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	if window == 1 {
		return b.Clone(), nil
	}
	half := window / 2
	frames := b.Frames()
	out := NewBuffer(b.Channels, b.SampleRate, frames)
	inv := 1 / float64(window)
	for c := 0; c < b.Channels; c++ {
		// Running sum over the window centred on frame i.
		sum := 0.0
		for k := 0; k <= half && k < frames; k++ {
			sum += b.Samples[k*b.Channels+c]
		}
		for i := 0; i < frames; i++ {
			out.Samples[i*b.Channels+c] = sum * inv
			if enter := i + half + 1; enter < frames {
				sum += b.Samples[enter*b.Channels+c]
			}
			if leave := i - half; leave >= 0 {
				sum -= b.Samples[leave*b.Channels+c]
			}
		}
	}
	return out, nil
}

// Speed factors AdjustSpeed accepts.
const (
	MinSpeedFactor = 0.25
	MaxSpeedFactor = 4.0
)

// AdjustSpeed time-scales b by factor while keeping its sample rate. A factor
// above 1 shortens the buffer and raises pitch; 1.0 returns b unchanged.
// Factors outside [MinSpeedFactor, MaxSpeedFactor] fail with ErrInvalidFactor.
func AdjustSpeed(b Buffer, factor float64) (Buffer, error) {
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	if math.IsNaN(factor) || factor < MinSpeedFactor || factor > MaxSpeedFactor {
		return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidFactor, factor)
	}
	if factor == 1.0 {
		return b, nil
	}
	frames := int(math.Round(float64(b.Frames()) / factor))
	out := interpolate(b, frames, factor)
	out.SampleRate = b.SampleRate
	return out, nil
}

// NormalizeRMS applies gain so the buffer's RMS level sits at targetDB dBFS,
// then clamps the peak to PeakCeiling. Silent buffers are returned unchanged.
func NormalizeRMS(b Buffer, targetDB float64) (Buffer, error) {
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	rms := b.RMS()
	if rms == 0 {
		return b, nil
	}
	currentDB := 20 * math.Log10(rms+1e-8)
	gain := math.Pow(10, (targetDB-currentDB)/20)
	out := b.Clone()
	for i := range out.Samples {
		out.Samples[i] *= gain
	}
	return Normalize(out), nil
}
