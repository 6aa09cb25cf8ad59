// Package avsync joins a dubbed audio track to the original picture.
//
// Sync copies video stream 0 without re-encoding, encodes the new audio as
// AAC at a fixed bitrate, maps both streams explicitly, and truncates to the
// shorter input. Probe reports stream durations so callers can confirm the
// output length.
package avsync
