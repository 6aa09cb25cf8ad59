// Package jobs is the caller-facing handle on dubbing jobs. Submit enqueues
// work, GetStatus returns committed snapshots from the queue store, and
// Cancel flags a job so the pipeline stops at its next stage boundary.
package jobs
