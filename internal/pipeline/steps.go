package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"dubber/internal/artifact"
	"dubber/internal/audiomix"
	"dubber/internal/dubbing"
	"dubber/internal/fileutil"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/stage"
)

const fallbackLanguage = "en"

type step struct {
	name  string
	stage dubbing.Stage
	skip  func(*run) bool
	exec  func(context.Context, *run) error
	// recover installs the step's fallback when its policy degrades.
	recover func(*run) error
}

// run holds the state of one job while it moves through the steps.
type run struct {
	job       *queue.Job
	kind      dubbing.MediaKind
	target    string
	settings  dubbing.VoiceSettings
	lc        *artifact.Lifecycle
	logger    *zap.Logger
	started   time.Time
	outputDir string

	audioPath      string
	vocalsPath     string
	backgroundPath string
	transcript     dubbing.Transcription
	translated     string
	voicePath      string
	mixedPath      string
	pendingPath    string
	outputPath     string

	fallbackAttempted bool
	degradations      []dubbing.Degradation
}

func (o *Orchestrator) newRun(ctx context.Context, job *queue.Job, logger *zap.Logger) (*run, error) {
	settings, err := job.VoiceSettings()
	if err != nil {
		logging.WarnWithContext(logger, "ignoring unreadable voice settings", "voice_settings_invalid",
			zap.Error(err),
			zap.String(logging.FieldImpact, "default voice settings used"),
		)
		settings = dubbing.VoiceSettings{}
	}
	lc, err := artifact.New(o.cfg.Paths.StagingDir, job.ID, logger, artifact.WithKeepAll(o.cfg.Pipeline.KeepIntermediates))
	if err != nil {
		return nil, err
	}
	kind := job.MediaKind
	if kind == "" {
		kind, _ = dubbing.ClassifyPath(job.InputPath)
	}
	target := language.Normalize(job.TargetLanguage)
	if target == "" {
		target = language.Auto
	}
	return &run{
		job:       job,
		kind:      kind,
		target:    target,
		settings:  settings,
		lc:        lc,
		logger:    logger,
		started:   o.now(),
		outputDir: o.cfg.Paths.OutputDir,
	}, nil
}

func (o *Orchestrator) buildSteps() []step {
	return []step{
		{name: StepValidate, stage: dubbing.StageValidating, exec: o.validate},
		{name: StepExtract, stage: dubbing.StageExtractingAudio, skip: audioOnly, exec: o.extract},
		{name: StepConvert, stage: dubbing.StageSeparatingVocals, skip: hasWAV, exec: o.convert},
		{name: StepSeparate, stage: dubbing.StageSeparatingVocals, exec: o.separate},
		{name: StepBackground, stage: dubbing.StageSeparatingVocals, exec: o.background, recover: useOriginalAsBackground},
		{name: StepTranscribe, stage: dubbing.StageTranscribing, exec: o.transcribe},
		{name: StepTranslate, stage: dubbing.StageTranslating, skip: translationNotNeeded, exec: o.translate, recover: keepOriginalText},
		{name: StepSynthesize, stage: dubbing.StageSynthesizing, exec: o.synthesize},
		{name: StepSpeed, stage: dubbing.StageSynthesizing, skip: normalSpeed, exec: o.adjustSpeed, recover: keepVoice},
		{name: StepLevel, stage: dubbing.StageSynthesizing, skip: o.levelDisabled, exec: o.level, recover: keepVoice},
		{name: StepMix, stage: dubbing.StageMixing, exec: o.mix, recover: copyVoiceAsMix},
		{name: StepSync, stage: dubbing.StageSyncing, skip: audioOnly, exec: o.sync},
		{name: StepFinalize, stage: dubbing.StageFinalizing, exec: o.finalize},
	}
}

func audioOnly(r *run) bool { return r.kind != dubbing.MediaVideo }

func hasWAV(r *run) bool {
	return r.audioPath != "" && strings.EqualFold(filepath.Ext(r.audioPath), ".wav")
}

func translationNotNeeded(r *run) bool {
	return language.IsAuto(r.target) || language.Same(r.target, r.transcript.Language)
}

func normalSpeed(r *run) bool {
	return r.settings.Speed() == 1.0
}

func (o *Orchestrator) levelDisabled(*run) bool {
	return !o.cfg.Pipeline.NormalizeVoice
}

// synthesisLanguage is the language the voice is rendered in.
func (r *run) synthesisLanguage() string {
	if !language.IsAuto(r.target) {
		return r.target
	}
	if detected := language.Normalize(r.transcript.Language); detected != "" && detected != language.Auto {
		return detected
	}
	return fallbackLanguage
}

func (r *run) degrade(st dubbing.Stage, kind dubbing.ErrorKind, err error, logger *zap.Logger) {
	msg := strings.TrimSpace(err.Error())
	r.degradations = append(r.degradations, dubbing.Degradation{Stage: st, Kind: kind, Message: msg})
	logging.WarnWithContext(logger, "stage degraded", "stage_degraded",
		zap.String(logging.FieldStage, string(st)),
		zap.String("error_kind", string(kind)),
		zap.Error(err),
		zap.String(logging.FieldImpact, "output quality reduced"),
	)
}

func (o *Orchestrator) validate(_ context.Context, r *run) error {
	path := strings.TrimSpace(r.job.InputPath)
	if path == "" {
		return services.Wrap(services.ErrNotFound, "validate", "stat input", "input path is empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "validate", "stat input", path, err)
		}
		return services.Wrap(services.ErrNotFound, "validate", "stat input", "input not readable", err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrNotFound, "validate", "stat input", "input is not a regular file", nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrNotFound, "validate", "stat input", "input file is empty", nil)
	}
	kind, ok := dubbing.ClassifyPath(path)
	if !ok {
		return services.Wrap(services.ErrUnsupportedFormat, "validate", "classify input",
			fmt.Sprintf("extension %q is not supported", filepath.Ext(path)), nil)
	}
	r.kind = kind
	if _, err := r.lc.Track(path, artifact.KindSourceInput, artifact.Keep); err != nil {
		return err
	}
	if kind == dubbing.MediaAudio {
		r.audioPath = path
	}
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, r *run) error {
	out, err := r.lc.Path(artifact.KindExtractedAudio, "extracted.wav", artifact.Temporary)
	if err != nil {
		return err
	}
	if o.adapters.Extractor == nil {
		return services.Wrap(services.ErrConfiguration, "extract", "extract audio", "no extractor configured", nil)
	}
	if err := o.adapters.Extractor.ExtractAudio(ctx, r.job.InputPath, out); err != nil {
		return err
	}
	r.audioPath = out
	return nil
}

// convert decodes a compressed audio input to WAV so the DSP engine can read
// it.
func (o *Orchestrator) convert(ctx context.Context, r *run) error {
	out, err := r.lc.Path(artifact.KindExtractedAudio, "source.wav", artifact.Temporary)
	if err != nil {
		return err
	}
	if o.adapters.Extractor == nil {
		return services.Wrap(services.ErrConfiguration, "convert", "decode audio", "no extractor configured", nil)
	}
	if err := o.adapters.Extractor.ExtractAudio(ctx, r.audioPath, out); err != nil {
		return err
	}
	r.audioPath = out
	return nil
}

func (o *Orchestrator) separate(ctx context.Context, r *run) error {
	if o.adapters.Separator == nil {
		return services.Wrap(services.ErrConfiguration, "separate", "separate vocals", "no separator configured", nil)
	}
	workDir, err := r.lc.ScratchDir("separation")
	if err != nil {
		return err
	}
	vocals, err := o.adapters.Separator.Separate(ctx, r.audioPath, workDir)
	if err != nil {
		return err
	}
	if _, err := r.lc.Track(vocals, artifact.KindVocals, artifact.Temporary); err != nil {
		return err
	}
	r.vocalsPath = vocals
	return nil
}

func (o *Orchestrator) background(_ context.Context, r *run) error {
	original, err := audiomix.Load(r.audioPath)
	if err != nil {
		return err
	}
	vocals, err := audiomix.Load(r.vocalsPath)
	if err != nil {
		return err
	}
	bed, err := audiomix.ExtractBackground(original, vocals, o.cfg.Pipeline.SmoothingWindow)
	if err != nil {
		return err
	}
	out, err := r.lc.Path(artifact.KindBackground, "background.wav", artifact.Temporary)
	if err != nil {
		return err
	}
	if err := audiomix.Save(out, bed); err != nil {
		return err
	}
	r.backgroundPath = out
	return nil
}

func useOriginalAsBackground(r *run) error {
	if r.audioPath == "" {
		return errors.New("no source audio to use as background")
	}
	r.backgroundPath = r.audioPath
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, r *run) error {
	if o.adapters.Transcriber == nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "transcribe", "no transcriber configured", nil)
	}
	workDir, err := r.lc.ScratchDir("transcription")
	if err != nil {
		return err
	}
	transcript, err := o.adapters.Transcriber.Transcribe(ctx, r.vocalsPath, workDir)
	if err != nil {
		return err
	}
	transcript.Language = language.Normalize(transcript.Language)
	if strings.TrimSpace(transcript.Text) == "" {
		transcript.Text = dubbing.JoinSegments(transcript.Segments)
	}
	r.transcript = transcript
	r.translated = transcript.Text
	return nil
}

func (o *Orchestrator) translate(ctx context.Context, r *run) error {
	if o.adapters.Translator == nil {
		return services.Wrap(services.ErrConfiguration, "translate", "translate", "no translator configured", nil)
	}
	text, err := o.adapters.Translator.Translate(ctx, r.transcript.Text, r.transcript.Language, r.target)
	if err != nil {
		return err
	}
	r.translated = strings.TrimSpace(text)
	return nil
}

func keepOriginalText(r *run) error {
	r.translated = r.transcript.Text
	return nil
}

// synthesize renders the translated text with the cloning synthesizer and
// retries once through the fallback synthesizer.
func (o *Orchestrator) synthesize(ctx context.Context, r *run) error {
	out, err := r.lc.Path(artifact.KindSynthesizedVoice, "synthesized.wav", artifact.Temporary)
	if err != nil {
		return err
	}
	req := stage.SynthesisRequest{
		Text:      r.translated,
		Language:  r.synthesisLanguage(),
		Reference: r.vocalsPath,
		Settings:  r.settings.Clone(),
		Output:    out,
	}
	var primaryErr error
	if o.adapters.Synthesizer != nil {
		primaryErr = o.adapters.Synthesizer.Synthesize(ctx, req)
		if primaryErr == nil {
			r.voicePath = out
			return nil
		}
	} else {
		primaryErr = errors.New("no synthesizer configured")
	}
	if ctx.Err() != nil {
		return primaryErr
	}
	if o.adapters.FallbackSynthesis == nil {
		return primaryErr
	}
	logging.WarnWithContext(r.logger, "primary synthesis failed, retrying with fallback", "synthesis_fallback",
		zap.Error(primaryErr),
		zap.String(logging.FieldImpact, "voice will not be cloned"),
	)
	r.fallbackAttempted = true
	req.Reference = ""
	if err := o.adapters.FallbackSynthesis.Synthesize(ctx, req); err != nil {
		return fmt.Errorf("primary: %v; fallback: %w", primaryErr, err)
	}
	r.voicePath = out
	return nil
}

func (o *Orchestrator) adjustSpeed(_ context.Context, r *run) error {
	voice, err := audiomix.Load(r.voicePath)
	if err != nil {
		return err
	}
	adjusted, err := audiomix.AdjustSpeed(voice, r.settings.Speed())
	if err != nil {
		return err
	}
	out, err := r.lc.Path(artifact.KindSynthesizedVoice, "synthesized_speed.wav", artifact.Temporary)
	if err != nil {
		return err
	}
	if err := audiomix.Save(out, adjusted); err != nil {
		return err
	}
	r.voicePath = out
	return nil
}

func (o *Orchestrator) level(_ context.Context, r *run) error {
	voice, err := audiomix.Load(r.voicePath)
	if err != nil {
		return err
	}
	leveled, err := audiomix.NormalizeRMS(voice, o.cfg.Pipeline.VoiceTargetDB)
	if err != nil {
		return err
	}
	out, err := r.lc.Path(artifact.KindSynthesizedVoice, "synthesized_level.wav", artifact.Temporary)
	if err != nil {
		return err
	}
	if err := audiomix.Save(out, leveled); err != nil {
		return err
	}
	r.voicePath = out
	return nil
}

// keepVoice leaves the voice from the previous step in place.
func keepVoice(*run) error { return nil }

func (r *run) stem() string {
	base := filepath.Base(r.job.InputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// deliverable names a file for the output directory. The job id keeps
// repeated submissions of one input from sharing a path.
func (r *run) deliverable(prefix, ext string) string {
	return fmt.Sprintf("%s_%s_%s_job-%d%s", prefix, r.stem(), r.synthesisLanguage(), r.job.ID, ext)
}

// mixTarget allocates the mix in the job directory. For audio jobs it is
// the pending deliverable that finalize publishes.
func (r *run) mixTarget() (string, error) {
	path, err := r.lc.Path(artifact.KindMixedAudio, r.deliverable("mixed", ".wav"), artifact.Temporary)
	if err != nil {
		return "", err
	}
	if r.kind != dubbing.MediaVideo {
		r.pendingPath = path
	}
	return path, nil
}

func (o *Orchestrator) mix(_ context.Context, r *run) error {
	out, err := r.mixTarget()
	if err != nil {
		return err
	}
	r.mixedPath = out
	voice, err := audiomix.Load(r.voicePath)
	if err != nil {
		return err
	}
	bed, err := audiomix.Load(r.backgroundPath)
	if err != nil {
		return err
	}
	mixed, err := audiomix.Mix(voice, bed, r.settings.VocalVolume(), r.settings.BackgroundVolume())
	if err != nil {
		return err
	}
	return audiomix.Save(out, mixed)
}

func copyVoiceAsMix(r *run) error {
	if r.mixedPath == "" {
		out, err := r.mixTarget()
		if err != nil {
			return err
		}
		r.mixedPath = out
	}
	return fileutil.CopyFile(r.voicePath, r.mixedPath)
}

func (o *Orchestrator) sync(ctx context.Context, r *run) error {
	if o.adapters.Syncer == nil {
		return services.Wrap(services.ErrConfiguration, "sync", "attach audio", "no syncer configured", nil)
	}
	out, err := r.lc.Path(artifact.KindRemuxedVideo, r.deliverable("dubbed", ".mp4"), artifact.Temporary)
	if err != nil {
		return err
	}
	if err := o.adapters.Syncer.Sync(ctx, r.job.InputPath, r.mixedPath, out, r.synthesisLanguage()); err != nil {
		_ = os.Remove(out)
		return err
	}
	r.pendingPath = out
	return nil
}

// finalize checks the pending deliverable and moves it into the output
// directory. Nothing reaches the output directory before this step.
func (o *Orchestrator) finalize(_ context.Context, r *run) error {
	if r.pendingPath == "" {
		return errors.New("no final output was produced")
	}
	info, err := os.Stat(r.pendingPath)
	if err != nil {
		return fmt.Errorf("stat final output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("final output is empty")
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	dest := filepath.Join(r.outputDir, filepath.Base(r.pendingPath))
	if err := publish(r.pendingPath, dest); err != nil {
		return err
	}
	if _, err := r.lc.Track(dest, artifact.KindFinalOutput, artifact.Keep); err != nil {
		_ = os.Remove(dest)
		return err
	}
	r.outputPath = dest
	return nil
}

// publish renames src to dst, copying when they sit on different
// filesystems.
func publish(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	_ = os.Remove(src)
	return nil
}

func (r *run) result(now time.Time) (dubbing.Result, error) {
	info, err := os.Stat(r.outputPath)
	if err != nil {
		return dubbing.Result{}, fmt.Errorf("stat final output: %w", err)
	}
	return dubbing.Result{
		OutputPath:        r.outputPath,
		OutputKind:        r.kind,
		OriginalText:      r.transcript.Text,
		TranslatedText:    r.translated,
		DetectedLanguage:  r.transcript.Language,
		TargetLanguage:    r.target,
		ProcessingSeconds: now.Sub(r.started).Seconds(),
		FileInfo: dubbing.FileInfo{
			OutputFilename:   filepath.Base(r.outputPath),
			FileSize:         info.Size(),
			IsVideo:          r.kind == dubbing.MediaVideo,
			OriginalFilename: filepath.Base(r.job.InputPath),
		},
		Transcription: dubbing.TranscriptSummary{
			Segments:   r.transcript.Segments,
			Confidence: r.transcript.Confidence,
		},
		Degradations: append([]dubbing.Degradation(nil), r.degradations...),
	}, nil
}
