// Command dubber is the command line client for the dubbing daemon: submit
// media, inspect and cancel jobs, check external dependencies, and sweep
// stale staging directories.
//
// Job commands talk to dubberd's ops API when it is reachable and fall back
// to the queue database otherwise; a running daemon picks up directly queued
// jobs on its next poll.
package main
