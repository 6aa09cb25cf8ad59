package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dubber/internal/dubbing"
	"dubber/internal/queue"
	"dubber/internal/testsupport"
)

func TestNewJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.NewJob(ctx, queue.NewJobParams{
		InputPath:      "/media/clip.mp4",
		MediaKind:      dubbing.MediaVideo,
		TargetLanguage: "es",
		VoiceSettings:  dubbing.VoiceSettings{dubbing.SettingSpeed: 1.25},
		RequestID:      "req-1",
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == 0 || job.Stage != dubbing.StageQueued || job.Progress != 0 {
		t.Fatalf("unexpected new job %+v", job)
	}
	settings, err := job.VoiceSettings()
	if err != nil {
		t.Fatalf("VoiceSettings: %v", err)
	}
	if settings.Speed() != 1.25 {
		t.Fatalf("speed = %v", settings.Speed())
	}

	second, err := store.NewJob(ctx, queue.NewJobParams{InputPath: "/media/clip.mp4", MediaKind: dubbing.MediaVideo, TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if second.ID == job.ID {
		t.Fatal("expected a distinct job per submission")
	}

	missing, err := store.GetByID(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v, %v", missing, err)
	}
}

func TestClaimNextIsOrderedAndExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/in/a.wav", "es")
	testsupport.NewJob(t, store, "/in/b.wav", "es")
	testsupport.NewJob(t, store, "/in/c.wav", "es")

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest job, got %+v", claimed)
	}
	if claimed.Stage != dubbing.StageValidating || claimed.Attempts != 1 || claimed.LastHeartbeat == nil {
		t.Fatalf("claim did not stamp job: %+v", claimed)
	}

	var (
		mu   sync.Mutex
		seen = map[int64]int{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNext(ctx)
			if err != nil {
				t.Errorf("ClaimNext: %v", err)
				return
			}
			if job != nil {
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 2 {
		t.Fatalf("expected the two remaining jobs to be claimed, got %v", seen)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("job %d claimed %d times", id, n)
		}
	}

	empty, err := store.ClaimNext(ctx)
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got %+v, %v", empty, err)
	}
}

func TestUpdateProgressIsMonotonicAndForwardOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/in/a.wav", "es")

	if err := store.UpdateProgress(ctx, job.ID, dubbing.StageTranscribing, 50, "Transcribing"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, dubbing.StageTranscribing, 40, "still"); err != nil {
		t.Fatalf("UpdateProgress same stage: %v", err)
	}
	got, _ := store.GetByID(ctx, job.ID)
	if got.Progress != 50 {
		t.Fatalf("progress decreased to %v", got.Progress)
	}

	err := store.UpdateProgress(ctx, job.ID, dubbing.StageValidating, 60, "back")
	if !errors.Is(err, queue.ErrStageRegression) {
		t.Fatalf("expected ErrStageRegression, got %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, dubbing.StageMixing, 100, "mixing"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ = store.GetByID(ctx, job.ID)
	if got.Progress >= 100 {
		t.Fatalf("progress must stay below 100 before done, got %v", got.Progress)
	}
	if err := store.UpdateProgress(ctx, 424242, dubbing.StageMixing, 85, ""); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTerminalJobsAreFrozen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewJob(t, store, "/in/a.wav", "es")
	result := dubbing.Result{OutputPath: "/out/mixed_a_es.wav", OutputKind: dubbing.MediaAudio, TranslatedText: "Hola"}
	if err := store.Complete(ctx, done.ID, result); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ := store.GetByID(ctx, done.ID)
	if got.Stage != dubbing.StageDone || got.Progress != 100 {
		t.Fatalf("unexpected done job %+v", got)
	}
	decoded, err := got.Result()
	if err != nil || decoded == nil || decoded.OutputPath != result.OutputPath {
		t.Fatalf("result not stored: %+v, %v", decoded, err)
	}

	if err := store.UpdateProgress(ctx, done.ID, dubbing.StageMixing, 85, ""); !errors.Is(err, queue.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := store.Fail(ctx, done.ID, dubbing.Failure{Kind: dubbing.KindInternal}); !errors.Is(err, queue.ErrTerminal) {
		t.Fatalf("expected ErrTerminal on fail after done, got %v", err)
	}
	if ok, err := store.RequestCancel(ctx, done.ID); err != nil || ok {
		t.Fatalf("cancel on done job = %v, %v", ok, err)
	}

	failed := testsupport.NewJob(t, store, "/in/b.wav", "es")
	if err := store.UpdateProgress(ctx, failed.ID, dubbing.StageSynthesizing, 75, ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	failure := dubbing.Failure{Stage: dubbing.StageSynthesizing, Kind: dubbing.KindSynthesisFailed, Message: "both synthesizers failed", FallbackAttempted: true}
	if err := store.Fail(ctx, failed.ID, failure); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ = store.GetByID(ctx, failed.ID)
	if got.Stage != dubbing.StageFailed || got.Progress != 75 || got.ProgressMessage != failure.Message {
		t.Fatalf("unexpected failed job %+v", got)
	}
	record, err := got.Failure()
	if err != nil || record == nil || !record.FallbackAttempted || record.Kind != dubbing.KindSynthesisFailed {
		t.Fatalf("failure not stored: %+v, %v", record, err)
	}
}

func TestCancelFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/in/a.wav", "es")

	requested, err := store.CancelRequested(ctx, job.ID)
	if err != nil || requested {
		t.Fatalf("fresh job cancel flag = %v, %v", requested, err)
	}
	ok, err := store.RequestCancel(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("RequestCancel = %v, %v", ok, err)
	}
	requested, err = store.CancelRequested(ctx, job.ID)
	if err != nil || !requested {
		t.Fatalf("cancel flag = %v, %v", requested, err)
	}
	if ok, _ := store.RequestCancel(ctx, 9999); ok {
		t.Fatal("expected false for unknown job")
	}
}

func TestReclaimStaleAndResetActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/in/a.wav", "es")
	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %+v, %v", claimed, err)
	}
	if err := store.UpdateProgress(ctx, claimed.ID, dubbing.StageTranscribing, 50, ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	n, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("fresh heartbeat reclaimed: %d, %v", n, err)
	}
	n, err = store.ReclaimStale(ctx, time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("expected stale job reclaimed, got %d, %v", n, err)
	}
	got, _ := store.GetByID(ctx, claimed.ID)
	if got.Stage != dubbing.StageQueued || got.LastHeartbeat != nil {
		t.Fatalf("unexpected reclaimed job %+v", got)
	}
	if got.Progress != 50 {
		t.Fatalf("reclaim must keep progress, got %v", got.Progress)
	}

	again, err := store.ClaimNext(ctx)
	if err != nil || again == nil || again.Attempts != 2 {
		t.Fatalf("reclaimed job not claimable: %+v, %v", again, err)
	}
	n, err = store.ResetActive(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetActive = %d, %v", n, err)
	}
}

func TestStatsRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "/in/a.wav", "es")
	b := testsupport.NewJob(t, store, "/in/b.wav", "es")
	testsupport.NewJob(t, store, "/in/c.wav", "es")
	if err := store.Complete(ctx, a.ID, dubbing.Result{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := store.UpdateProgress(ctx, b.ID, dubbing.StageMixing, 85, ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Done != 1 || health.Processing != 1 || health.Queued != 1 {
		t.Fatalf("unexpected health %+v", health)
	}

	if removed, err := store.Remove(ctx, b.ID); err != nil || removed {
		t.Fatalf("active job must not be removed: %v, %v", removed, err)
	}
	cleared, err := store.ClearCompleted(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearCompleted = %d, %v", cleared, err)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.TableExists || len(dbHealth.MissingColumns) != 0 || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected db health %+v", dbHealth)
	}
	if dbHealth.TotalJobs != 2 || dbHealth.SchemaVersion != 1 {
		t.Fatalf("unexpected db counts %+v", dbHealth)
	}
}

func TestReopenKeepsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	job := testsupport.NewJob(t, store, "/in/a.wav", "fr")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.GetByID(context.Background(), job.ID)
	if err != nil || got == nil || got.TargetLanguage != "fr" {
		t.Fatalf("job lost across reopen: %+v, %v", got, err)
	}
}
