package inbox

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"limner/internal/logging"
)

// DefaultSettleDelay is how long a file must sit unchanged before it is
// considered fully written.
const DefaultSettleDelay = 2 * time.Second

// DefaultRescanInterval is how often the intake directory is rescanned for
// files that produced no events.
const DefaultRescanInterval = 30 * time.Second

// documentExtensions lists intake file types the pipeline accepts.
var documentExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
}

// Handler receives the path of each stable intake document exactly once per
// watcher lifetime.
type Handler func(ctx context.Context, path string)

// Watcher monitors one intake directory.
type Watcher struct {
	dir            string
	logger         *slog.Logger
	handler        Handler
	settleDelay    time.Duration
	rescanInterval time.Duration

	mu      sync.Mutex
	running bool
	seen    map[string]struct{}
	pending map[string]fileState

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type fileState struct {
	size    int64
	modTime time.Time
	since   time.Time
}

// Option configures optional Watcher behavior.
type Option func(*Watcher)

// WithSettleDelay overrides the stability window for new files.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settleDelay = d
		}
	}
}

// WithRescanInterval overrides the periodic rescan cadence.
func WithRescanInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.rescanInterval = d
		}
	}
}

// NewWatcher returns a watcher over dir that invokes handler for each new
// stable document.
func NewWatcher(dir string, handler Handler, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:            dir,
		logger:         logging.NewComponentLogger(logger, "inbox"),
		handler:        handler,
		settleDelay:    DefaultSettleDelay,
		rescanInterval: DefaultRescanInterval,
		seen:           make(map[string]struct{}),
		pending:        make(map[string]fileState),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IsDocument reports whether a file name has an accepted intake extension.
func IsDocument(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := documentExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// Start begins watching. It fails when the intake directory cannot be
// watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("inbox watcher already running")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		_ = fsWatcher.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = fsWatcher
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop()
	w.logger.Info("watching intake directory", logging.String("dir", w.dir))
	return nil
}

// Stop halts the watcher and waits for in-flight handler calls.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	fsWatcher := w.watcher
	w.running = false
	w.cancel = nil
	w.watcher = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if fsWatcher != nil {
		_ = fsWatcher.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.rescan()

	settle := time.NewTicker(w.settleDelay / 2)
	defer settle.Stop()
	rescan := time.NewTicker(w.rescanInterval)
	defer rescan.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.track(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("intake watch error", logging.Error(err))
		case <-settle.C:
			w.flushSettled()
		case <-rescan.C:
			w.rescan()
		}
	}
}

// rescan registers every untracked document currently in the directory.
func (w *Watcher) rescan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("intake rescan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.track(filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) track(path string) {
	if !IsDocument(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("stat intake file failed", logging.String("path", path), logging.Error(err))
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.seen[path]; done {
		return
	}
	state, tracked := w.pending[path]
	if !tracked || state.size != info.Size() || !state.modTime.Equal(info.ModTime()) {
		w.pending[path] = fileState{size: info.Size(), modTime: info.ModTime(), since: time.Now()}
	}
}

// flushSettled hands over files whose size and mtime held still for the
// settle window.
func (w *Watcher) flushSettled() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, state := range w.pending {
		if now.Sub(state.since) < w.settleDelay {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != state.size || !info.ModTime().Equal(state.modTime) {
			w.pending[path] = fileState{size: info.Size(), modTime: info.ModTime(), since: now}
			continue
		}
		delete(w.pending, path)
		w.seen[path] = struct{}{}
		ready = append(ready, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.logger.Info("intake document ready",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "intake_document_ready"),
		)
		w.handler(w.ctx, path)
	}
}
