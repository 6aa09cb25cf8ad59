// Package queue persists dubbing jobs in SQLite and exposes the state
// transitions the workflow drives them through.
//
// The Store owns schema initialization, busy retries, claim and heartbeat
// bookkeeping, stale-job reclaim, and the guarded progress updates that keep
// stage order forward-only and progress monotonic. Terminal jobs are frozen:
// every mutation after done or failed returns ErrTerminal.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// delete the database to adopt the new schema.
package queue
