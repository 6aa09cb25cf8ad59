// Package pipeline drives a dubbing job from validation to a delivered file.
//
// The Orchestrator runs a fixed list of steps grouped into stages. Each step
// has a Rule in an explicit policy table: Abort ends the job as failed,
// Degrade installs the step's fallback and records a degradation on the
// result. Progress, cancellation and the terminal outcome flow through a
// Reporter, which the queue store implements. Temporary artifacts are
// removed on every exit path.
package pipeline
