// Package dubbing defines the value types shared by every layer of the
// dubbing pipeline: the ordered Stage enum with its progress milestones, the
// error kinds used in failure and degradation records, transcription results,
// voice settings, and the terminal Result record.
//
// The package has no dependencies on storage or adapters so queue rows,
// adapters, and the orchestrator can all exchange these types freely.
package dubbing
