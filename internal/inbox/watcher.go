package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"dubber/internal/dubbing"
	"dubber/internal/jobs"
	"dubber/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Submitter enqueues jobs. jobs.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, path, targetLanguage string, settings dubbing.VoiceSettings) (int64, error)
	List(ctx context.Context, stages ...dubbing.Stage) ([]jobs.Status, error)
}

// Notifier is woken after each submission.
type Notifier interface {
	Notify()
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must be quiet before it is submitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher submits files dropped into a directory.
type Watcher struct {
	dir       string
	submitter Submitter
	notifier  Notifier
	logger    *zap.Logger
	debounce  time.Duration

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	known  map[string]struct{}

	submitted atomic.Int64
	skipped   atomic.Int64
}

// New builds a watcher for dir. notifier may be nil.
func New(dir string, submitter Submitter, notifier Notifier, logger *zap.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:       dir,
		submitter: submitter,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "inbox"),
		debounce:  defaultDebounce,
		timers:    make(map[string]*time.Timer),
		known:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start creates the directory if needed, submits files already present that
// have never been queued, and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	if w.submitter == nil {
		return errors.New("inbox: submitter required")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("inbox: create %s: %w", w.dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.watcher = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	if err := w.loadKnown(w.ctx); err != nil {
		w.logger.Warn("could not read existing jobs; inbox files may be resubmitted", zap.Error(err))
	}

	go w.loop()
	w.backfill()

	w.logger.Info("inbox watcher started", zap.String("dir", w.dir))
	return nil
}

// Stop closes the watcher and drops pending debounce timers.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	_ = w.watcher.Close()
	<-w.done

	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.logger.Info("inbox watcher stopped",
		zap.Int64("files_submitted", w.submitted.Load()),
		zap.Int64("files_skipped", w.skipped.Load()),
	)
}

// Submitted returns how many files this watcher has queued.
func (w *Watcher) Submitted() int64 {
	return w.submitted.Load()
}

func (w *Watcher) loadKnown(ctx context.Context) error {
	existing, err := w.submitter.List(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, job := range existing {
		w.known[job.InputPath] = struct{}{}
	}
	return nil
}

func (w *Watcher) backfill() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox scan failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.schedule(filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", zap.Error(err))
		}
	}
}

// schedule coalesces bursts of events on one file so large copies are
// submitted once, after the writer goes quiet.
func (w *Watcher) schedule(path string) {
	if !eligible(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.process(path)
	})
}

func (w *Watcher) process(path string) {
	if w.ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w.mu.Lock()
	if _, seen := w.known[abs]; seen {
		w.mu.Unlock()
		w.skipped.Add(1)
		return
	}
	w.known[abs] = struct{}{}
	w.mu.Unlock()

	id, err := w.submitter.Submit(w.ctx, abs, "", nil)
	if err != nil {
		w.mu.Lock()
		delete(w.known, abs)
		w.mu.Unlock()
		w.skipped.Add(1)
		logging.WarnWithContext(w.logger, "inbox submit failed", "inbox_submit_failed",
			zap.String("path", abs),
			zap.Error(err),
		)
		return
	}
	w.submitted.Add(1)
	w.logger.Info("inbox file submitted", zap.String("path", abs), zap.Int64(logging.FieldJobID, id))
	if w.notifier != nil {
		w.notifier.Notify()
	}
}

// eligible filters hidden files, in-progress downloads and unsupported
// extensions.
func eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range []string{".part", ".tmp", ".crdownload"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	_, ok := dubbing.ClassifyPath(path)
	return ok
}
