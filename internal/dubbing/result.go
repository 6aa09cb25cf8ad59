package dubbing

// FileInfo describes the delivered output file.
type FileInfo struct {
	OutputFilename   string `json:"output_filename"`
	FileSize         int64  `json:"file_size"`
	IsVideo          bool   `json:"is_video"`
	OriginalFilename string `json:"original_filename"`
}

// TranscriptSummary is the transcript excerpt attached to a Result.
type TranscriptSummary struct {
	Segments   []Segment `json:"segments"`
	Confidence float64   `json:"confidence"`
}

// Result is the terminal record of a completed job.
type Result struct {
	OutputPath        string            `json:"output_path"`
	OutputKind        MediaKind         `json:"output_kind"`
	OriginalText      string            `json:"original_text"`
	TranslatedText    string            `json:"translated_text"`
	DetectedLanguage  string            `json:"detected_language"`
	TargetLanguage    string            `json:"target_language"`
	ProcessingSeconds float64           `json:"processing_time"`
	FileInfo          FileInfo          `json:"file_info"`
	Transcription     TranscriptSummary `json:"transcription"`
	Degradations      []Degradation     `json:"degradations,omitempty"`
}

// Degraded reports whether any recoverable failure was absorbed.
func (r Result) Degraded() bool {
	return len(r.Degradations) > 0
}

// HasDegradation reports whether a recoverable failure of kind was absorbed.
func (r Result) HasDegradation(kind ErrorKind) bool {
	for _, d := range r.Degradations {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
