package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"limner/internal/config"
	"limner/internal/inbox"
	"limner/internal/logging"
	"limner/internal/workflow"
)

// Daemon owns the limner background process lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock
	watcher  *inbox.Watcher

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "limnerd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.watcher = inbox.NewWatcher(cfg.Paths.IntakeDir, d.handleDocument, logger)
	return d, nil
}

// LockPath returns the single-instance lock file path.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Start acquires the single-instance lock and begins watching the intake
// directory.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another limner daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.watcher.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start intake watcher: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("limner daemon started",
		logging.String("lock", d.lockPath),
		logging.String("intake", d.cfg.Paths.IntakeDir),
	)
	return nil
}

// Stop halts intake watching, waits for in-flight documents, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("limner daemon stopped")
}

// Running reports whether the daemon lifecycle is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// handleDocument ingests one stable intake file and runs the pipeline for it
// in the background.
func (d *Daemon) handleDocument(ctx context.Context, path string) {
	documentID, workdir, err := IngestDocument(d.cfg.Paths.LibraryDir, path)
	if err != nil {
		d.logger.Error("document ingestion failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ingest_failed"),
			logging.String(logging.FieldErrorHint, "check intake file permissions and library directory"),
		)
		return
	}

	d.logger.Info("document ingested",
		logging.String(logging.FieldDocumentID, documentID),
		logging.String("workdir", workdir),
	)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		mgr := workflow.NewManager(d.cfg, workdir, documentID, d.logger)
		if err := mgr.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("document pipeline failed",
				logging.String(logging.FieldDocumentID, documentID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "pipeline_failed"),
				logging.String(logging.FieldErrorHint, "run limner status on the workdir, then limner units reset for failed units"),
			)
		}
	}()
}
