// Package daemon coordinates the long-running dubberd process.
//
// It wires configuration, queue storage, the stage adapters, the orchestrator
// and the workflow manager into one lifecycle, guarded by a flock-based lock
// so only one daemon owns a queue database. The ops HTTP server, the inbox
// watcher and the stale staging janitor start and stop with it.
//
// Keep orchestration logic here: individual pipeline steps live in
// internal/pipeline while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
