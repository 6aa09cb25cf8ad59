// Package notifications publishes job outcome alerts to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. JobOutcome maps a terminal queue job to the
// event and payload the workflow manager sends.
package notifications
