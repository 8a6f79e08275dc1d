package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"youtuberag/internal/config"
	"youtuberag/internal/logging"
	"youtuberag/internal/queue"
	"youtuberag/internal/videos"
)

// Manager polls the store for ready jobs and dispatches the orchestrator.
// It guarantees at most one in-flight execution per job id and bounds the
// number of concurrently processed jobs; two different jobs share no mutable
// state beyond their own records.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	orchestrator *Orchestrator
	logger       *slog.Logger
	pollInterval time.Duration

	wake chan struct{}

	mu       sync.Mutex
	inFlight map[int64]struct{}
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager builds the manager and its orchestrator. The manager itself is
// the Scheduler used for stage chaining.
func NewManager(cfg *config.Config, store *queue.Store, videoStore *videos.Store, logger *slog.Logger, handlers ...Handler) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		wake:         make(chan struct{}, 1),
		inFlight:     make(map[int64]struct{}),
	}
	m.orchestrator = NewOrchestrator(store, videoStore, m, logger, handlers...)
	return m
}

// Orchestrator exposes the stage orchestrator (used by tests and diagnostics).
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// Enqueue implements Scheduler. The persisted job record is the source of
// truth for which stage runs next; this only mints a diagnostic queue job id
// and wakes the poll loop.
func (m *Manager) Enqueue(ctx context.Context, stage queue.Stage, jobID int64) (string, error) {
	queueJobID := uuid.NewString()
	m.logger.Debug("stage enqueued",
		logging.Int64(logging.FieldJobID, jobID),
		logging.String(logging.FieldStage, string(stage)),
		logging.String("queue_job_id", queueJobID),
	)
	m.Wake()
	return queueJobID, nil
}

// Wake nudges the poll loop without waiting for the next tick.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start launches the poll and retention loops. Jobs left running by an
// earlier process are reset so their interrupted stage is retried in place.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	if reset, err := m.store.ResetStuckRunning(runCtx); err != nil {
		m.logger.Warn("failed to reset interrupted jobs", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("reset interrupted jobs", logging.Int64("count", reset))
	}

	m.wg.Add(2)
	go m.pollLoop(runCtx)
	go m.retentionLoop(runCtx)
	m.logger.Info("workflow manager started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("max_concurrent_jobs", m.cfg.Workflow.MaxConcurrentJobs),
	)
	return nil
}

// Stop cancels the loops and waits for in-flight stages to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		m.dispatchReady(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.wake:
		}
	}
}

func (m *Manager) dispatchReady(ctx context.Context) {
	var skipped []int64
	for {
		if ctx.Err() != nil {
			return
		}
		m.mu.Lock()
		slots := m.cfg.Workflow.MaxConcurrentJobs - len(m.inFlight)
		exclude := make([]int64, 0, len(m.inFlight)+len(skipped))
		for id := range m.inFlight {
			exclude = append(exclude, id)
		}
		exclude = append(exclude, skipped...)
		m.mu.Unlock()
		if slots <= 0 {
			return
		}

		job, err := m.store.NextReady(ctx, exclude)
		if err != nil {
			m.logger.Error("failed to query ready jobs", logging.Error(err))
			return
		}
		if job == nil {
			return
		}

		stage, ok := m.resolveStage(job)
		if !ok {
			m.logger.Warn("pending job has no runnable stage",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String(logging.FieldStage, string(job.CurrentStage)),
			)
			// Skip it for the rest of this sweep so it cannot shadow
			// runnable jobs behind it.
			skipped = append(skipped, job.ID)
			continue
		}

		m.mu.Lock()
		if _, busy := m.inFlight[job.ID]; busy {
			m.mu.Unlock()
			continue
		}
		m.inFlight[job.ID] = struct{}{}
		m.mu.Unlock()

		m.wg.Add(1)
		go m.runStage(ctx, job.ID, stage)
	}
}

func (m *Manager) runStage(ctx context.Context, jobID int64, stage queue.Stage) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.inFlight, jobID)
		m.mu.Unlock()
		m.Wake()
	}()

	if err := m.orchestrator.RunStage(ctx, jobID, stage); err != nil {
		// Fault bookkeeping already persisted by the orchestrator; operator
		// errors surface here.
		m.logger.Debug("stage returned error",
			logging.Int64(logging.FieldJobID, jobID),
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err),
		)
	}
}

// resolveStage derives the stage to run from the persisted record: a fresh
// job starts at the first stage, a failed-and-rescheduled job retries its
// current stage in place, and a job whose current stage already carries a
// full progress mark resumes at the next stage (the reconciliation path for
// a crash between persistence and chain-enqueue).
func (m *Manager) resolveStage(job *queue.Job) (queue.Stage, bool) {
	if job.CurrentStage == queue.StageNone {
		return queue.PipelineStages[0], true
	}
	if job.StageCompleted(job.CurrentStage) {
		return queue.NextStage(job.CurrentStage)
	}
	return job.CurrentStage, true
}

func (m *Manager) retentionLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := time.Duration(m.cfg.Workflow.RetentionSweepMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cutoff := time.Now().AddDate(0, 0, -m.cfg.Workflow.RetentionDays)
		removed, err := m.store.DeleteFinishedBefore(ctx, cutoff, m.cfg.Workflow.RetainDeadLettered)
		if err != nil {
			m.logger.Warn("retention sweep failed", logging.Error(err))
			continue
		}
		if removed > 0 {
			m.logger.Info("retention sweep removed old jobs", logging.Int64("count", removed))
		}
	}
}
