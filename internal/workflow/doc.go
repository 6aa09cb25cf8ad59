// Package workflow feeds queued dubbing jobs to the pipeline.
//
// The Manager runs a configurable number of worker lanes. Each lane claims
// the oldest queued job atomically, keeps its heartbeat fresh while the
// pipeline runs, and then looks for the next one. Jobs whose heartbeat
// stops are requeued by a periodic reclaimer, and jobs left active by a
// crashed process are requeued when the manager starts. Status aggregates
// queue counts, in-flight jobs and adapter health for the ops server.
package workflow
