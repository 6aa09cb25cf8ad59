package pipeline

import (
	"dubber/internal/dubbing"
)

// Policy decides what a failed step does to the run.
type Policy int

const (
	// Abort ends the run as failed.
	Abort Policy = iota
	// Degrade substitutes the step's fallback and records a degradation.
	Degrade
)

func (p Policy) String() string {
	if p == Degrade {
		return "degrade"
	}
	return "abort"
}

// Rule pairs the failure kind recorded for a step with its policy.
type Rule struct {
	Kind   dubbing.ErrorKind
	Policy Policy
}

// Step names. Several steps can share one stage; progress is reported once
// per stage.
const (
	StepValidate   = "validate"
	StepExtract    = "extract"
	StepConvert    = "convert"
	StepSeparate   = "separate"
	StepBackground = "background"
	StepTranscribe = "transcribe"
	StepTranslate  = "translate"
	StepSynthesize = "synthesize"
	StepSpeed      = "speed"
	StepLevel      = "level"
	StepMix        = "mix"
	StepSync       = "sync"
	StepFinalize   = "finalize"
)

var policies = map[string]Rule{
	StepValidate:   {Kind: dubbing.KindInputNotFound, Policy: Abort},
	StepExtract:    {Kind: dubbing.KindExtractionFailed, Policy: Abort},
	StepConvert:    {Kind: dubbing.KindExtractionFailed, Policy: Abort},
	StepSeparate:   {Kind: dubbing.KindSeparationFailed, Policy: Abort},
	StepBackground: {Kind: dubbing.KindMixFailed, Policy: Degrade},
	StepTranscribe: {Kind: dubbing.KindTranscriptionFailed, Policy: Abort},
	StepTranslate:  {Kind: dubbing.KindTranslationFailed, Policy: Degrade},
	StepSynthesize: {Kind: dubbing.KindSynthesisFailed, Policy: Abort},
	StepSpeed:      {Kind: dubbing.KindSpeedAdjustFailed, Policy: Degrade},
	StepLevel:      {Kind: dubbing.KindMixFailed, Policy: Degrade},
	StepMix:        {Kind: dubbing.KindMixFailed, Policy: Degrade},
	StepSync:       {Kind: dubbing.KindSyncFailed, Policy: Abort},
	StepFinalize:   {Kind: dubbing.KindInternal, Policy: Abort},
}

// RuleFor returns the failure rule for a step. Unknown steps abort as
// internal failures.
func RuleFor(step string) Rule {
	if r, ok := policies[step]; ok {
		return r
	}
	return Rule{Kind: dubbing.KindInternal, Policy: Abort}
}

// Policies returns a copy of the step policy table.
func Policies() map[string]Rule {
	out := make(map[string]Rule, len(policies))
	for k, v := range policies {
		out[k] = v
	}
	return out
}

// decide resolves the policy for a classified failure. Timeouts and
// cancellations always abort, whatever the step allows.
func decide(rule Rule, kind dubbing.ErrorKind) Policy {
	if kind == dubbing.KindTimeout || kind == dubbing.KindCancelled {
		return Abort
	}
	return rule.Policy
}
