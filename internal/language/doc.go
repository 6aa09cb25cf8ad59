// Package language normalizes language codes supplied by callers and
// reported by transcription backends.
//
// Inputs may be ISO 639-1 or 639-2 codes, BCP 47 tags, or English names; all
// are reduced to ISO 639-1 so the pipeline can compare a detected language
// against the requested target.
package language
