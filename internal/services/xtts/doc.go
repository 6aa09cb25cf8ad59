// Package xtts drives the Coqui TTS command line. The primary synthesizer
// clones the speaker from the separated vocals with XTTS v2; with cloning
// off the same runner serves single-voice models like Tacotron2 as the
// fallback.
package xtts
