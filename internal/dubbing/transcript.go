package dubbing

import "strings"

// defaultWordlessConfidence is reported when segments carry no word scores.
const defaultWordlessConfidence = 0.8

// Word is a single recognized token with timing and probability.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// Segment is a time-stamped span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcription is the output of the transcribing stage.
type Transcription struct {
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	Segments   []Segment `json:"segments"`
	Confidence float64   `json:"confidence"`
}

// Confidence averages word probabilities across segments. Segments without
// word scores yield 0.8; no segments at all yields 0.
func Confidence(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var (
		total float64
		words int
	)
	for _, seg := range segments {
		for _, w := range seg.Words {
			total += w.Probability
			words++
		}
	}
	if words == 0 {
		return defaultWordlessConfidence
	}
	return clamp01(total / float64(words))
}

// JoinSegments concatenates segment text with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
