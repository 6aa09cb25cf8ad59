package daemon_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"dubber/internal/config"
	"dubber/internal/daemon"
	"dubber/internal/jobs"
	"dubber/internal/queue"
	"dubber/internal/services/openai"
	"dubber/internal/services/whisperx"
	"dubber/internal/services/xtts"
	"dubber/internal/stage"
	"dubber/internal/testsupport"
	"dubber/internal/workflow"
)

type idleRunner struct{}

func (idleRunner) Run(context.Context, *queue.Job) error       { return nil }
func (idleRunner) HealthChecks(context.Context) []stage.Health { return nil }

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	logger := zap.NewNop()
	mgr := workflow.NewManager(cfg, store, idleRunner{}, logger, workflow.WithPollInterval(20*time.Millisecond))
	svc := jobs.New(store, cfg.Pipeline.DefaultTargetLanguage, logger)
	d, err := daemon.New(cfg, store, logger, mgr, svc)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() || status.QueueDBPath != cfg.QueueDBPath() {
		t.Fatalf("unexpected paths %+v", status)
	}
	if len(status.Dependencies) != 3 {
		t.Fatalf("expected dependency report, got %d entries", len(status.Dependencies))
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	secondCfg := *cfg
	secondCfg.Ops.Bind = ""
	second := newDaemon(t, &secondCfg)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonServesOpsEndpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	addr := d.Status(context.Background()).OpsAddress
	if addr == "" {
		t.Fatal("ops server address not reported")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestDaemonInboxSubmitsFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInbox())
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if err := os.WriteFile(filepath.Join(cfg.Paths.InboxDir, "lecture.mp3"), []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		list, err := d.Jobs().List(context.Background())
		if err == nil && len(list) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("inbox file was not submitted")
}

func TestDaemonSweepsStaleStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ops.Bind = ""
	stale := filepath.Join(cfg.Paths.StagingDir, "job-1")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale staging dir survived start: %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, zap.NewNop(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildAdaptersFollowsProviders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapters := daemon.BuildAdapters(cfg, zap.NewNop())
	if _, ok := adapters.Transcriber.(*whisperx.Service); !ok {
		t.Fatalf("default transcriber = %T", adapters.Transcriber)
	}
	if _, ok := adapters.FallbackSynthesis.(*xtts.Synthesizer); !ok {
		t.Fatalf("default fallback = %T", adapters.FallbackSynthesis)
	}
	if adapters.Extractor == nil || adapters.Separator == nil || adapters.Translator == nil || adapters.Synthesizer == nil || adapters.Syncer == nil {
		t.Fatalf("missing adapter in %+v", adapters)
	}

	cfg.Transcription.Provider = "openai"
	cfg.Synthesis.FallbackProvider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	adapters = daemon.BuildAdapters(cfg, zap.NewNop())
	if _, ok := adapters.Transcriber.(*openai.Transcriber); !ok {
		t.Fatalf("openai transcriber = %T", adapters.Transcriber)
	}
	if _, ok := adapters.FallbackSynthesis.(*openai.Synthesizer); !ok {
		t.Fatalf("openai fallback = %T", adapters.FallbackSynthesis)
	}
}
