package stage

import (
	"context"

	"dubber/internal/dubbing"
)

// AudioExtractor pulls the audio track out of a video container into a WAV
// file at output.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, output string) error
}

// VocalSeparator isolates the voice in input and returns the path of the
// vocals stem it wrote under workDir.
type VocalSeparator interface {
	Separate(ctx context.Context, input, workDir string) (string, error)
}

// Transcriber turns speech into timed text. The language is detected.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, workDir string) (dubbing.Transcription, error)
}

// Translator converts text from source to target. Codes are ISO 639-1.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// SynthesisRequest describes one text-to-speech call.
type SynthesisRequest struct {
	Text     string
	Language string
	// Reference is the speaker sample used for cloning. Fallback
	// synthesizers ignore it.
	Reference string
	Settings  dubbing.VoiceSettings
	Output    string
}

// VoiceSynthesizer renders text to a WAV file at req.Output.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) error
}

// AVSyncer remuxes a new audio track onto the picture of video.
type AVSyncer interface {
	Sync(ctx context.Context, video, audio, output, language string) error
}

// HealthChecker is implemented by adapters that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Adapters bundles the collaborators a pipeline run needs.
type Adapters struct {
	Extractor         AudioExtractor
	Separator         VocalSeparator
	Transcriber       Transcriber
	Translator        Translator
	Synthesizer       VoiceSynthesizer
	FallbackSynthesis VoiceSynthesizer
	Syncer            AVSyncer
}

// HealthChecks gathers readiness from every adapter that implements
// HealthChecker. Adapters without a check are reported ready.
func (a Adapters) HealthChecks(ctx context.Context) []Health {
	named := []struct {
		name    string
		adapter any
	}{
		{"extractor", a.Extractor},
		{"separator", a.Separator},
		{"transcriber", a.Transcriber},
		{"translator", a.Translator},
		{"synthesizer", a.Synthesizer},
		{"fallback_synthesizer", a.FallbackSynthesis},
		{"syncer", a.Syncer},
	}
	out := make([]Health, 0, len(named))
	for _, n := range named {
		if n.adapter == nil {
			out = append(out, Unhealthy(n.name, "not configured"))
			continue
		}
		if hc, ok := n.adapter.(HealthChecker); ok {
			h := hc.HealthCheck(ctx)
			if h.Name == "" {
				h.Name = n.name
			}
			out = append(out, h)
			continue
		}
		out = append(out, Healthy(n.name))
	}
	return out
}
