// Package logging assembles structured zap loggers used across dubber
// services.
//
// It owns the console/JSON encoder setup, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, stages, worker lanes, and correlation IDs. WarnWithContext
// and ErrorWithContext enforce the event_type/error_hint/impact fields that
// operators filter on.
//
// Prefer these constructors over hand-rolled zap setup so new components emit
// data with the same shape and routing as the rest of the system.
package logging
