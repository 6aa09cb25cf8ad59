// Package stage declares the adapter contracts the dubbing pipeline drives:
// audio extraction, vocal separation, transcription, translation, voice
// synthesis, and A/V sync. Implementations live under internal/services and
// internal/avsync; tests substitute stubs.
package stage
