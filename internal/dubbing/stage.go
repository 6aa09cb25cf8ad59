package dubbing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage represents one phase of a dubbing job.
type Stage string

const (
	StageQueued           Stage = "queued"
	StageValidating       Stage = "validating"
	StageExtractingAudio  Stage = "extracting_audio"
	StageSeparatingVocals Stage = "separating_vocals"
	StageTranscribing     Stage = "transcribing"
	StageTranslating      Stage = "translating"
	StageSynthesizing     Stage = "synthesizing"
	StageMixing           Stage = "mixing"
	StageSyncing          Stage = "syncing"
	StageFinalizing       Stage = "finalizing"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

var allStages = []Stage{
	StageQueued,
	StageValidating,
	StageExtractingAudio,
	StageSeparatingVocals,
	StageTranscribing,
	StageTranslating,
	StageSynthesizing,
	StageMixing,
	StageSyncing,
	StageFinalizing,
	StageDone,
	StageFailed,
}

var stageOrder = func() map[Stage]int {
	order := make(map[Stage]int, len(allStages))
	for i, stage := range allStages {
		order[stage] = i
	}
	return order
}()

// Progress milestones reported when a stage begins.
var stageProgress = map[Stage]float64{
	StageQueued:           0,
	StageValidating:       10,
	StageExtractingAudio:  25,
	StageSeparatingVocals: 35,
	StageTranscribing:     50,
	StageTranslating:      65,
	StageSynthesizing:     75,
	StageMixing:           85,
	StageSyncing:          95,
	StageFinalizing:       95,
	StageDone:             100,
}

var stageMessages = map[Stage]string{
	StageQueued:           "Waiting for a worker",
	StageValidating:       "Validating input file",
	StageExtractingAudio:  "Extracting audio from video",
	StageSeparatingVocals: "Separating vocals from background",
	StageTranscribing:     "Transcribing speech to text",
	StageTranslating:      "Translating transcript",
	StageSynthesizing:     "Generating speech with voice cloning",
	StageMixing:           "Mixing audio with background",
	StageSyncing:          "Attaching audio to video",
	StageFinalizing:       "Creating final output",
	StageDone:             "Completed",
	StageFailed:           "Failed",
}

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := stageOrder[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// IsTerminal reports whether the stage ends a job.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// IsActive reports whether a worker currently owns a job in this stage.
func (s Stage) IsActive() bool {
	return s != StageQueued && !s.IsTerminal() && s != ""
}

// Before reports whether s precedes other in pipeline order.
func (s Stage) Before(other Stage) bool {
	a, okA := stageOrder[s]
	b, okB := stageOrder[other]
	return okA && okB && a < b
}

// CanAdvanceTo reports whether a job may move from s to next. Progression is
// forward only, any non-terminal stage may fail, and terminal stages are frozen.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	return s == next || s.Before(next)
}

// Progress returns the milestone percentage reported when the stage begins.
func (s Stage) Progress() float64 {
	return stageProgress[s]
}

// Message returns a human-readable phase description.
func (s Stage) Message() string {
	if msg, ok := stageMessages[s]; ok {
		return msg
	}
	return s.Label()
}

// Label renders the stage as title-cased words (e.g. "Extracting Audio").
func (s Stage) Label() string {
	raw := strings.ReplaceAll(string(s), "_", " ")
	if raw == "" {
		return ""
	}
	return cases.Title(language.Und).String(raw)
}
