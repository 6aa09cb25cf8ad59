package testsupport

import (
	"context"
	"testing"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues an audio job for path using the provided store.
func NewJob(t testing.TB, store *queue.Store, path, target string) *queue.Job {
	t.Helper()

	kind, ok := dubbing.ClassifyPath(path)
	if !ok {
		kind = dubbing.MediaAudio
	}
	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		InputPath:      path,
		MediaKind:      kind,
		TargetLanguage: target,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
