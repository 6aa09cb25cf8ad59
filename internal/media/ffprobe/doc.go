// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size)
//   - Prober: runs ffprobe through a services.CommandRunner so tests can
//     substitute canned output
//
// Helper methods on Result provide stream counts and duration parsing used
// by input validation and the A/V sync duration check.
package ffprobe
