package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dubber/internal/artifact"
	"dubber/internal/audiomix"
	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/logging"
	"dubber/internal/pipeline"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
)

const testRate = 16000

type stubExtractor struct {
	calls int
	err   error
}

func (s *stubExtractor) ExtractAudio(_ context.Context, _, output string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return audiomix.Save(output, testsupport.Tone(0.5, 220, testRate, 1))
}

type stubSeparator struct {
	calls   int
	err     error
	garbage bool
}

func (s *stubSeparator) Separate(_ context.Context, _, workDir string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	out := filepath.Join(workDir, "htdemucs", "clip", "vocals.wav")
	if s.garbage {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return "", err
		}
		return out, os.WriteFile(out, []byte("not a wav"), 0o644)
	}
	return out, audiomix.Save(out, testsupport.Tone(0.5, 440, testRate, 1))
}

type stubTranscriber struct {
	calls  int
	result dubbing.Transcription
	block  bool
	panics bool
	onCall func()
}

func (s *stubTranscriber) Transcribe(ctx context.Context, _, _ string) (dubbing.Transcription, error) {
	s.calls++
	if s.onCall != nil {
		s.onCall()
	}
	if s.panics {
		panic("decoder state corrupted")
	}
	if s.block {
		<-ctx.Done()
		return dubbing.Transcription{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "interrupted", ctx.Err())
	}
	return s.result, nil
}

type stubTranslator struct {
	calls int
	err   error
}

func (s *stubTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "translated: " + text, nil
}

type stubSynth struct {
	mu       sync.Mutex
	requests []stage.SynthesisRequest
	err      error
	channels int
}

func (s *stubSynth) Synthesize(_ context.Context, req stage.SynthesisRequest) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	channels := s.channels
	if channels == 0 {
		channels = 1
	}
	return audiomix.Save(req.Output, testsupport.Tone(0.4, 330, testRate, channels))
}

func (s *stubSynth) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubSyncer struct {
	calls  int
	audio  string
	output string
	err    error
	onCall func()
}

func (s *stubSyncer) Sync(_ context.Context, _, audio, output, _ string) error {
	s.calls++
	s.audio = audio
	s.output = output
	if s.onCall != nil {
		s.onCall()
	}
	if s.err != nil {
		return s.err
	}
	if _, err := os.Stat(audio); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("mp4"), 0o644)
}

type progressEvent struct {
	stage    dubbing.Stage
	progress float64
}

type recordingReporter struct {
	*queue.Store
	mu     sync.Mutex
	events []progressEvent
	// rejectStage makes progress writes for that stage fail.
	rejectStage dubbing.Stage
}

func (r *recordingReporter) UpdateProgress(ctx context.Context, id int64, st dubbing.Stage, progress float64, message string) error {
	r.mu.Lock()
	r.events = append(r.events, progressEvent{stage: st, progress: progress})
	r.mu.Unlock()
	if r.rejectStage != "" && st == r.rejectStage {
		return errors.New("database is locked")
	}
	return r.Store.UpdateProgress(ctx, id, st, progress, message)
}

func (r *recordingReporter) stages() []dubbing.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dubbing.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.stage)
	}
	return out
}

type harness struct {
	t           *testing.T
	cfg         *config.Config
	store       *queue.Store
	reporter    *recordingReporter
	extractor   *stubExtractor
	separator   *stubSeparator
	transcriber *stubTranscriber
	translator  *stubTranslator
	primary     *stubSynth
	fallback    *stubSynth
	syncer      *stubSyncer
	logs        *observer.ObservedLogs
	opts        []pipeline.Option
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	return &harness{
		t:         t,
		cfg:       cfg,
		store:     store,
		reporter:  &recordingReporter{Store: store},
		extractor: &stubExtractor{},
		separator: &stubSeparator{},
		transcriber: &stubTranscriber{result: dubbing.Transcription{
			Text:     "Hola mundo.",
			Language: "es",
			Segments: []dubbing.Segment{{Start: 0, End: 0.5, Text: "Hola mundo."}},
		}},
		translator: &stubTranslator{},
		primary:    &stubSynth{},
		fallback:   &stubSynth{},
		syncer:     &stubSyncer{},
	}
}

func (h *harness) orchestrator() *pipeline.Orchestrator {
	core, logs := observer.New(zap.DebugLevel)
	h.logs = logs
	adapters := stage.Adapters{
		Extractor:         h.extractor,
		Separator:         h.separator,
		Transcriber:       h.transcriber,
		Translator:        h.translator,
		Synthesizer:       h.primary,
		FallbackSynthesis: h.fallback,
		Syncer:            h.syncer,
	}
	return pipeline.New(h.cfg, adapters, h.reporter, zap.New(core), h.opts...)
}

func (h *harness) input(name string) string {
	h.t.Helper()
	path := filepath.Join(testsupport.BaseDir(h.cfg), "input", name)
	switch filepath.Ext(name) {
	case ".wav":
		testsupport.WriteTone(h.t, path, 0.5, testRate, 1)
	default:
		testsupport.WriteBytes(h.t, path, 2048)
	}
	return path
}

func (h *harness) claim(path, target string, settings dubbing.VoiceSettings) *queue.Job {
	h.t.Helper()
	kind, ok := dubbing.ClassifyPath(path)
	if !ok {
		kind = dubbing.MediaAudio
	}
	if _, err := h.store.NewJob(context.Background(), queue.NewJobParams{
		InputPath:      path,
		MediaKind:      kind,
		TargetLanguage: target,
		VoiceSettings:  settings,
	}); err != nil {
		h.t.Fatalf("NewJob: %v", err)
	}
	job, err := h.store.ClaimNext(context.Background())
	if err != nil || job == nil {
		h.t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}
	return job
}

func (h *harness) reload(id int64) *queue.Job {
	h.t.Helper()
	job, err := h.store.GetByID(context.Background(), id)
	if err != nil || job == nil {
		h.t.Fatalf("GetByID: job=%v err=%v", job, err)
	}
	return job
}

func (h *harness) result(id int64) *dubbing.Result {
	h.t.Helper()
	job := h.reload(id)
	if job.Stage != dubbing.StageDone {
		h.t.Fatalf("expected done, got %s (%s)", job.Stage, job.FailureJSON)
	}
	res, err := job.Result()
	if err != nil || res == nil {
		h.t.Fatalf("Result: res=%v err=%v", res, err)
	}
	return res
}

func (h *harness) failure(id int64) *dubbing.Failure {
	h.t.Helper()
	job := h.reload(id)
	if job.Stage != dubbing.StageFailed {
		h.t.Fatalf("expected failed, got %s", job.Stage)
	}
	f, err := job.Failure()
	if err != nil || f == nil {
		h.t.Fatalf("Failure: f=%v err=%v", f, err)
	}
	return f
}

func deliverable(prefix, stem, lang string, id int64, ext string) string {
	return fmt.Sprintf("%s_%s_%s_job-%d%s", prefix, stem, lang, id, ext)
}

func assertOutputDirEmpty(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("output dir holds %d entries, first %q", len(entries), entries[0].Name())
	}
}

func assertJobDirGone(t *testing.T, cfg *config.Config, id int64) {
	t.Helper()
	if _, err := os.Stat(artifact.JobDir(cfg.Paths.StagingDir, id)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staging dir for job %d removed, stat err=%v", id, err)
	}
}

func TestAudioJobCompletes(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := h.result(job.ID)
	want := filepath.Join(h.cfg.Paths.OutputDir, deliverable("mixed", "clip", "en", job.ID, ".wav"))
	if res.OutputPath != want {
		t.Fatalf("output = %q, want %q", res.OutputPath, want)
	}
	if res.OutputKind != dubbing.MediaAudio || res.FileInfo.IsVideo {
		t.Fatalf("unexpected output kind %+v", res)
	}
	if res.OriginalText != "Hola mundo." || res.TranslatedText != "translated: Hola mundo." {
		t.Fatalf("unexpected texts %q / %q", res.OriginalText, res.TranslatedText)
	}
	if res.DetectedLanguage != "es" || res.TargetLanguage != "en" {
		t.Fatalf("unexpected languages %+v", res)
	}
	if res.FileInfo.OriginalFilename != "clip.wav" || res.FileInfo.FileSize == 0 {
		t.Fatalf("unexpected file info %+v", res.FileInfo)
	}
	if res.Degraded() {
		t.Fatalf("unexpected degradations %+v", res.Degradations)
	}
	if h.extractor.calls != 0 {
		t.Fatalf("extractor called %d times for wav audio", h.extractor.calls)
	}
	if h.syncer.calls != 0 {
		t.Fatal("syncer called for audio job")
	}
	if got := h.primary.requests[0]; got.Language != "en" || got.Reference == "" {
		t.Fatalf("unexpected synthesis request %+v", got)
	}
	if reloaded := h.reload(job.ID); reloaded.Progress != 100 {
		t.Fatalf("progress = %v, want 100", reloaded.Progress)
	}

	wantStages := []dubbing.Stage{
		dubbing.StageValidating, dubbing.StageSeparatingVocals, dubbing.StageTranscribing,
		dubbing.StageTranslating, dubbing.StageSynthesizing, dubbing.StageMixing, dubbing.StageFinalizing,
	}
	if got := h.reporter.stages(); !equalStages(got, wantStages) {
		t.Fatalf("stages = %v, want %v", got, wantStages)
	}
	last := -1.0
	for _, e := range h.reporter.events {
		if e.progress < last {
			t.Fatalf("progress decreased: %v", h.reporter.events)
		}
		last = e.progress
	}
	assertJobDirGone(t, h.cfg, job.ID)
	if _, err := os.Stat(job.InputPath); err != nil {
		t.Fatalf("source input removed: %v", err)
	}
}

func TestVideoJobCompletes(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("talk.mp4"), "de", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := h.result(job.ID)
	want := filepath.Join(h.cfg.Paths.OutputDir, deliverable("dubbed", "talk", "de", job.ID, ".mp4"))
	if res.OutputPath != want || !res.FileInfo.IsVideo || res.OutputKind != dubbing.MediaVideo {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.extractor.calls != 1 || h.syncer.calls != 1 {
		t.Fatalf("extractor=%d syncer=%d, want 1 each", h.extractor.calls, h.syncer.calls)
	}
	if filepath.Base(h.syncer.audio) != deliverable("mixed", "talk", "de", job.ID, ".wav") {
		t.Fatalf("syncer received %q", h.syncer.audio)
	}
	stages := h.reporter.stages()
	if stages[1] != dubbing.StageExtractingAudio || !containsStage(stages, dubbing.StageSyncing) {
		t.Fatalf("unexpected stages %v", stages)
	}
	entries, err := os.ReadDir(h.cfg.Paths.OutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("output dir should hold only the video, got %v (err=%v)", entries, err)
	}
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestCompressedAudioIsDecodedBeforeSeparation(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("song.mp3"), "en", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	h.result(job.ID)
	if h.extractor.calls != 1 {
		t.Fatalf("extractor calls = %d, want 1", h.extractor.calls)
	}
	if containsStage(h.reporter.stages(), dubbing.StageExtractingAudio) {
		t.Fatal("audio job reported the extracting stage")
	}
}

func TestMissingInputFails(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(filepath.Join(t.TempDir(), "gone.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindInputNotFound || f.Stage != dubbing.StageValidating {
		t.Fatalf("unexpected failure %+v", f)
	}
	if h.separator.calls != 0 {
		t.Fatal("separator called after validation failure")
	}
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestEmptyInputFails(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	job := h.claim(path, "en", nil)

	_ = orch.Run(context.Background(), job)
	if f := h.failure(job.ID); f.Kind != dubbing.KindInputNotFound {
		t.Fatalf("kind = %s, want input_not_found", f.Kind)
	}
}

func TestUnsupportedExtensionFails(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("notes.txt"), "en", nil)

	_ = orch.Run(context.Background(), job)
	if f := h.failure(job.ID); f.Kind != dubbing.KindUnsupportedFormat {
		t.Fatalf("kind = %s, want unsupported_format", f.Kind)
	}
}

func TestTranslationFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.translator.err = services.Wrap(services.ErrExternalTool, "translate", "llm", "boom", nil)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if !res.HasDegradation(dubbing.KindTranslationFailed) {
		t.Fatalf("expected translation degradation, got %+v", res.Degradations)
	}
	if res.TranslatedText != res.OriginalText {
		t.Fatalf("translated text %q should fall back to original %q", res.TranslatedText, res.OriginalText)
	}
	if got := h.primary.requests[0].Text; got != "Hola mundo." {
		t.Fatalf("synthesized %q", got)
	}
	if len(h.logs.FilterMessage("stage degraded").All()) != 1 {
		t.Fatal("expected a degradation warning")
	}
}

func TestTranslationSkippedForSameLanguage(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "Spanish", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if h.translator.calls != 0 {
		t.Fatalf("translator called %d times", h.translator.calls)
	}
	if res.TranslatedText != res.OriginalText {
		t.Fatalf("text changed without translation: %q", res.TranslatedText)
	}
	if containsStage(h.reporter.stages(), dubbing.StageTranslating) {
		t.Fatal("skipped translation still reported progress")
	}
}

func TestAutoTargetKeepsDetectedLanguage(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "auto", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if h.translator.calls != 0 {
		t.Fatal("translator called for auto target")
	}
	if h.primary.requests[0].Language != "es" {
		t.Fatalf("synthesis language = %q, want es", h.primary.requests[0].Language)
	}
	if filepath.Base(res.OutputPath) != deliverable("mixed", "clip", "es", job.ID, ".wav") {
		t.Fatalf("output = %q", res.OutputPath)
	}
}

func TestSynthesisFallsBackOnce(t *testing.T) {
	h := newHarness(t)
	h.primary.err = errors.New("cuda out of memory")
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	h.result(job.ID)
	if h.primary.calls() != 1 || h.fallback.calls() != 1 {
		t.Fatalf("primary=%d fallback=%d, want 1 each", h.primary.calls(), h.fallback.calls())
	}
	if h.primary.requests[0].Reference == "" {
		t.Fatal("primary synthesis did not receive a reference sample")
	}
	if h.fallback.requests[0].Reference != "" {
		t.Fatal("fallback synthesis received a reference sample")
	}
}

func TestSynthesisFailsAfterFallback(t *testing.T) {
	h := newHarness(t)
	h.primary.err = errors.New("primary down")
	h.fallback.err = errors.New("fallback down")
	orch := h.orchestrator()
	job := h.claim(h.input("talk.mp4"), "en", nil)

	if err := orch.Run(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindSynthesisFailed || !f.FallbackAttempted || f.Stage != dubbing.StageSynthesizing {
		t.Fatalf("unexpected failure %+v", f)
	}
	if h.syncer.calls != 0 {
		t.Fatal("syncer ran after synthesis failure")
	}
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestSeparationFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.separator.err = services.Wrap(services.ErrExternalTool, "separate", "demucs", "exit 1", nil)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	_ = orch.Run(context.Background(), job)
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindSeparationFailed || f.FallbackAttempted {
		t.Fatalf("unexpected failure %+v", f)
	}
	if h.transcriber.calls != 0 {
		t.Fatal("transcriber ran after separation failure")
	}
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestExtractionFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", "no audio stream", nil)
	orch := h.orchestrator()
	job := h.claim(h.input("talk.mkv"), "en", nil)

	_ = orch.Run(context.Background(), job)
	if f := h.failure(job.ID); f.Kind != dubbing.KindExtractionFailed || f.Stage != dubbing.StageExtractingAudio {
		t.Fatalf("unexpected failure %+v", f)
	}
}

func TestBackgroundFailureUsesOriginalAudio(t *testing.T) {
	h := newHarness(t)
	h.separator.garbage = true
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if len(res.Degradations) != 1 || res.Degradations[0].Kind != dubbing.KindMixFailed ||
		res.Degradations[0].Stage != dubbing.StageSeparatingVocals {
		t.Fatalf("unexpected degradations %+v", res.Degradations)
	}
}

func TestMixFailureCopiesVoice(t *testing.T) {
	h := newHarness(t)
	h.primary.channels = 3
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if !res.HasDegradation(dubbing.KindMixFailed) {
		t.Fatalf("expected mix degradation, got %+v", res.Degradations)
	}
	out, err := audiomix.Load(res.OutputPath)
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	if out.Channels != 3 {
		t.Fatalf("output should be the raw voice, got %d channels", out.Channels)
	}
}

func TestSyncFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.syncer.err = services.Wrap(services.ErrExternalTool, "sync", "ffmpeg", "exit status 1", nil)
	orch := h.orchestrator()
	job := h.claim(h.input("talk.mov"), "en", nil)

	_ = orch.Run(context.Background(), job)
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindSyncFailed || f.Stage != dubbing.StageSyncing {
		t.Fatalf("unexpected failure %+v", f)
	}
	assertOutputDirEmpty(t, h.cfg)
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestCancelBeforeStart(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)
	if ok, err := h.store.RequestCancel(context.Background(), job.ID); err != nil || !ok {
		t.Fatalf("RequestCancel: ok=%v err=%v", ok, err)
	}

	_ = orch.Run(context.Background(), job)
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindCancelled {
		t.Fatalf("kind = %s, want cancelled", f.Kind)
	}
	if h.separator.calls != 0 || h.primary.calls() != 0 {
		t.Fatal("adapters ran after cancellation")
	}
}

func TestCancelBetweenStagesSkipsLaterAdapters(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)
	h.transcriber.onCall = func() {
		if ok, err := h.store.RequestCancel(context.Background(), job.ID); err != nil || !ok {
			t.Errorf("RequestCancel: ok=%v err=%v", ok, err)
		}
	}

	_ = orch.Run(context.Background(), job)
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindCancelled {
		t.Fatalf("kind = %s, want cancelled", f.Kind)
	}
	if h.transcriber.calls != 1 {
		t.Fatalf("transcriber calls = %d, want the running stage to finish once", h.transcriber.calls)
	}
	if h.translator.calls != 0 || h.primary.calls() != 0 {
		t.Fatal("later adapters ran after cancellation")
	}
	assertJobDirGone(t, h.cfg, job.ID)
	assertOutputDirEmpty(t, h.cfg)
}

func TestCancelDuringSyncStillCompletes(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("talk.mp4"), "en", nil)
	h.syncer.onCall = func() {
		if _, err := h.store.RequestCancel(context.Background(), job.ID); err != nil {
			t.Errorf("RequestCancel: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestRepeatedSubmissionsGetDistinctOutputs(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	input := h.input("clip.wav")

	first := h.claim(input, "en", nil)
	if err := orch.Run(context.Background(), first); err != nil {
		t.Fatalf("Run first: %v", err)
	}
	second := h.claim(input, "en", nil)
	if err := orch.Run(context.Background(), second); err != nil {
		t.Fatalf("Run second: %v", err)
	}

	a, b := h.result(first.ID), h.result(second.ID)
	if a.OutputPath == b.OutputPath {
		t.Fatalf("jobs %d and %d share output %q", first.ID, second.ID, a.OutputPath)
	}
	for _, res := range []*dubbing.Result{a, b} {
		info, err := os.Stat(res.OutputPath)
		if err != nil || info.Size() != res.FileInfo.FileSize {
			t.Fatalf("output %q: size mismatch or missing (err=%v)", res.OutputPath, err)
		}
	}
}

func TestAudioMixStaysStagedUntilFinalize(t *testing.T) {
	h := newHarness(t)
	h.reporter.rejectStage = dubbing.StageFinalizing
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err == nil {
		t.Fatal("expected progress write failure")
	}
	assertOutputDirEmpty(t, h.cfg)
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestStepPanicFailsJob(t *testing.T) {
	h := newHarness(t)
	h.transcriber.panics = true
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	if err := orch.Run(context.Background(), job); err == nil {
		t.Fatal("expected Run error")
	}
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindTranscriptionFailed || f.Stage != dubbing.StageTranscribing {
		t.Fatalf("unexpected failure %+v", f)
	}
	assertJobDirGone(t, h.cfg, job.ID)
}

func TestHardDeadlineRecordsTimeout(t *testing.T) {
	h := newHarness(t)
	h.transcriber.block = true
	h.opts = []pipeline.Option{pipeline.WithDeadlines(10*time.Millisecond, 50*time.Millisecond)}
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	_ = orch.Run(context.Background(), job)
	f := h.failure(job.ID)
	if f.Kind != dubbing.KindTimeout {
		t.Fatalf("kind = %s, want timeout", f.Kind)
	}
	soft := h.logs.FilterField(zap.String(logging.FieldEventType, "run_deadline_soft")).All()
	if len(soft) != 1 {
		t.Fatalf("expected one soft deadline warning, got %d", len(soft))
	}
}

func TestShutdownLeavesJobForReclaim(t *testing.T) {
	h := newHarness(t)
	h.transcriber.block = true
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx, job) }()
	for h.reload(job.ID).Stage != dubbing.StageTranscribing {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if got := h.reload(job.ID); got.Stage != dubbing.StageTranscribing {
		t.Fatalf("stage = %s, want job left in transcribing", got.Stage)
	}
}

func TestSpeedAndLevelAdjustVoice(t *testing.T) {
	h := newHarness(t)
	h.cfg.Pipeline.KeepIntermediates = true
	h.cfg.Pipeline.NormalizeVoice = true
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", dubbing.VoiceSettings{dubbing.SettingSpeed: 1.25})

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res := h.result(job.ID); res.Degraded() {
		t.Fatalf("unexpected degradations %+v", res.Degradations)
	}
	dir := artifact.JobDir(h.cfg.Paths.StagingDir, job.ID)
	original, err := audiomix.Load(filepath.Join(dir, "synthesized.wav"))
	if err != nil {
		t.Fatalf("load synthesized: %v", err)
	}
	faster, err := audiomix.Load(filepath.Join(dir, "synthesized_speed.wav"))
	if err != nil {
		t.Fatalf("load adjusted: %v", err)
	}
	if faster.Frames() >= original.Frames() {
		t.Fatalf("speed 1.25 did not shorten voice: %d >= %d", faster.Frames(), original.Frames())
	}
	if _, err := os.Stat(filepath.Join(dir, "synthesized_level.wav")); err != nil {
		t.Fatalf("expected leveled voice: %v", err)
	}
}

func TestInvalidSpeedDegrades(t *testing.T) {
	for _, speed := range []any{-2.0, 1e-12, 1e9, "NaN"} {
		t.Run(fmt.Sprint(speed), func(t *testing.T) {
			h := newHarness(t)
			orch := h.orchestrator()
			job := h.claim(h.input("clip.wav"), "en", dubbing.VoiceSettings{dubbing.SettingSpeed: speed})

			if err := orch.Run(context.Background(), job); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res := h.result(job.ID); !res.HasDegradation(dubbing.KindSpeedAdjustFailed) {
				t.Fatalf("expected speed degradation, got %+v", res.Degradations)
			}
		})
	}
}

func TestInfiniteVolumeDegradesMix(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", dubbing.VoiceSettings{dubbing.SettingVocalVolume: "Inf"})

	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	if !res.HasDegradation(dubbing.KindMixFailed) {
		t.Fatalf("expected mix degradation, got %+v", res.Degradations)
	}
	out, err := audiomix.Load(res.OutputPath)
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	if peak := out.Peak(); peak > 1 {
		t.Fatalf("output peak %v", peak)
	}
}

func TestFinishedJobOutputIsStable(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator()
	job := h.claim(h.input("clip.wav"), "en", nil)
	if err := orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := h.result(job.ID)
	before, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.store.UpdateProgress(context.Background(), job.ID, dubbing.StageMixing, 10, "again"); !errors.Is(err, queue.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	after, _ := os.ReadFile(res.OutputPath)
	if !bytes.Equal(before, after) {
		t.Fatal("output changed after completion")
	}
}

func equalStages(a, b []dubbing.Stage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsStage(stages []dubbing.Stage, want dubbing.Stage) bool {
	for _, s := range stages {
		if s == want {
			return true
		}
	}
	return false
}
