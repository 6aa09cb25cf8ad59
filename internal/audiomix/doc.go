// Package audiomix implements the deterministic DSP used by the dubbing
// pipeline: resampling, channel reconciliation, length alignment, vocal
// mixing with clip-safe normalization, background extraction, speed
// adjustment, and RMS levelling. It also reads and writes PCM WAV files.
//
// Every routine validates its operands and treats the background or
// original signal as primary; the secondary signal is converted to match.
// None of the functions mutate their inputs.
package audiomix
