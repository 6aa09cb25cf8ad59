// Package whisperx runs WhisperX through uvx to transcribe the isolated
// vocal stem.
//
// WhisperX detects the spoken language itself and writes a JSON document
// with sentence segments and per-word alignment scores. The service reads
// that document back into dubbing.Transcription, using the word scores as
// recognition confidence.
//
// Configuration options (model, CUDA, VAD method) are passed via Config.
package whisperx
