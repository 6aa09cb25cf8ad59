package whisperx

// Config holds the WhisperX invocation settings taken from the
// [transcription] and [tools] config sections.
type Config struct {
	UVX         string // launcher; empty means "uvx" on PATH
	Model       string
	CUDAEnabled bool
	VADMethod   string // VADSilero or VADPyannote
	HFToken     string // only sent with VADPyannote
}

const (
	DefaultModel = "large-v3"
	VADSilero    = "silero"
	VADPyannote  = "pyannote"
)

// decodeFlags tune WhisperX for dubbing: sentence-level segments with word
// timings, short chunks so long pauses split segments, and a sensitive VAD
// so quiet speech over a music bed is kept.
var decodeFlags = [][2]string{
	{"--batch_size", "4"},
	{"--output_format", "json"},
	{"--segment_resolution", "sentence"},
	{"--chunk_size", "15"},
	{"--vad_onset", "0.08"},
	{"--vad_offset", "0.07"},
	{"--beam_size", "10"},
	{"--best_of", "10"},
	{"--temperature", "0.0"},
	{"--patience", "1.0"},
}

const cpuComputeType = "float32"
