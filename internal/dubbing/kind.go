package dubbing

// ErrorKind classifies why a stage failed.
type ErrorKind string

const (
	KindInputNotFound            ErrorKind = "input_not_found"
	KindUnsupportedFormat        ErrorKind = "unsupported_format"
	KindExtractionFailed         ErrorKind = "extraction_failed"
	KindSeparationFailed         ErrorKind = "separation_failed"
	KindTranscriptionFailed      ErrorKind = "transcription_failed"
	KindTranslationFailed        ErrorKind = "translation_failed"
	KindSynthesisFailed          ErrorKind = "synthesis_failed"
	KindMixFailed                ErrorKind = "mix_failed"
	KindSpeedAdjustFailed        ErrorKind = "speed_adjust_failed"
	KindSyncFailed               ErrorKind = "sync_failed"
	KindTimeout                  ErrorKind = "timeout"
	KindCancelled                ErrorKind = "cancelled"
	KindCleanupWarning           ErrorKind = "cleanup_warning"
	KindUnsupportedChannelLayout ErrorKind = "unsupported_channel_layout"
	KindInternal                 ErrorKind = "internal"
)

// Failure is the terminal record of a job that did not complete.
type Failure struct {
	Stage             Stage     `json:"stage"`
	Kind              ErrorKind `json:"kind"`
	Message           string    `json:"message"`
	FallbackAttempted bool      `json:"fallback_attempted"`
}

// Degradation records a recoverable failure that was absorbed during a run.
type Degradation struct {
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
