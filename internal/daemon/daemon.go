package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"youtuberag/internal/config"
	"youtuberag/internal/logging"
	"youtuberag/internal/pipeline"
	"youtuberag/internal/queue"
	"youtuberag/internal/videos"
)

// Daemon coordinates the workflow manager and HTTP API and enforces
// single-instance execution via a lock file.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	videoStore *videos.Store
	manager    *pipeline.Manager
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Queue        queue.HealthSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, videoStore *videos.Store, logger *slog.Logger, manager *pipeline.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || videoStore == nil || logger == nil || manager == nil {
		return nil, errors.New("daemon requires config, stores, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "youtuberagd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		videoStore: videoStore,
		manager:    manager,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager and API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds the lock at %s", d.lockPath)
	}

	if err := d.manager.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow manager: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(ctx); err != nil {
			d.manager.Stop()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock_file", d.lockPath))
	return nil
}

// Stop shuts everything down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.api != nil {
		d.api.stop()
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Status reports runtime information for diagnostics.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue health", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		Queue:        health,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
