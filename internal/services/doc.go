// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, worker lanes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify which turns
//     a stage failure into the error kind persisted on the job.
//   - A command runner abstraction (see run.go) that keeps external tool
//     invocations testable.
//
// Adapter packages under services/ use these helpers so failure handling and
// observability stay uniform across the pipeline.
package services
