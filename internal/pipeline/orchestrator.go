package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"youtuberag/internal/logging"
	"youtuberag/internal/queue"
	"youtuberag/internal/retry"
	"youtuberag/internal/services"
	"youtuberag/internal/videos"
)

// Orchestrator drives a job through one stage invocation: load, execute,
// persist, then chain forward or route the fault through the retry engine.
// It is the sole boundary where stage faults are classified; raw handler
// errors never escape unpersisted.
type Orchestrator struct {
	store      *queue.Store
	videoStore *videos.Store
	scheduler  Scheduler
	handlers   map[queue.Stage]Handler
	logger     *slog.Logger
}

// NewOrchestrator wires stage handlers to the persistence and scheduling
// collaborators.
func NewOrchestrator(store *queue.Store, videoStore *videos.Store, scheduler Scheduler, logger *slog.Logger, handlers ...Handler) *Orchestrator {
	byStage := make(map[queue.Stage]Handler, len(handlers))
	for _, handler := range handlers {
		byStage[handler.Stage()] = handler
	}
	return &Orchestrator{
		store:      store,
		videoStore: videoStore,
		scheduler:  scheduler,
		handlers:   byStage,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// RunStage executes stage for the given job id.
//
// A missing job or handler is an operator error: it is returned to the caller
// and never written back as a job fault. Everything raised by the stage
// operation is classified, persisted, and either rescheduled or dead-lettered;
// in that case RunStage returns the stage error after persisting the outcome.
func (o *Orchestrator) RunStage(ctx context.Context, jobID int64, stage queue.Stage) error {
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %d: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %d not found: refusing to run stage %s", jobID, stage)
	}

	handler, ok := o.handlers[stage]
	if !ok {
		return fmt.Errorf("no handler registered for stage %s", stage)
	}

	stageCtx := services.WithJobID(services.WithStage(ctx, string(stage)), job.ID)
	logger := logging.WithContext(stageCtx, o.logger)

	video, err := o.videoStore.GetByID(stageCtx, job.VideoID)
	if err != nil {
		return fmt.Errorf("load video %s for job %d: %w", job.VideoID, jobID, err)
	}
	if video == nil {
		// The referenced resource will never appear; fail the job for good.
		fault := services.Wrap(services.ErrNotFound, string(stage), "load video",
			fmt.Sprintf("video %s does not exist", job.VideoID), nil)
		return o.handleFault(stageCtx, logger, job, stage, fault)
	}

	firstStage := job.CurrentStage == queue.StageNone
	job.BeginStage(stage)
	if err := o.store.Update(stageCtx, job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	if firstStage {
		if err := o.videoStore.SetStatus(stageCtx, video.ID, videos.StatusProcessing, ""); err != nil {
			logger.Warn("failed to mark video processing", logging.Error(err))
		}
	}

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldVideoID, job.VideoID),
		logging.Int("retry_count", job.RetryCount),
	)

	if ctxErr := stageCtx.Err(); ctxErr != nil {
		return o.handleFault(stageCtx, logger, job, stage, ctxErr)
	}

	stageStart := time.Now()
	produced, runErr := handler.Run(stageCtx, job, video)
	if runErr != nil {
		return o.handleFault(stageCtx, logger, job, stage, runErr)
	}

	job.CompleteStage(stage, produced)
	if err := o.store.Update(stageCtx, job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("progress", job.Progress),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if job.Status == queue.StatusCompleted {
		title, _ := job.MetadataValue(queue.MetaVideoTitle)
		if err := o.videoStore.SetStatus(stageCtx, video.ID, videos.StatusReady, title); err != nil {
			logger.Warn("failed to mark video ready", logging.Error(err))
		}
		logger.Info("job completed", logging.String(logging.FieldEventType, "job_complete"))
		return nil
	}

	// The completion above is already durable, so a crash from here on leaves
	// the job resumable by the manager's poll sweep.
	next, ok := queue.NextStage(stage)
	if !ok {
		return nil
	}
	queueJobID, err := o.scheduler.Enqueue(stageCtx, next, job.ID)
	if err != nil {
		logger.Warn("chain enqueue failed, job will be picked up by the sweep",
			logging.String("next_stage", string(next)),
			logging.Error(err),
		)
		return nil
	}
	job.QueueJobID = queueJobID
	if err := o.store.Update(stageCtx, job); err != nil {
		logger.Warn("failed to record queue job id", logging.Error(err))
	}
	return nil
}

func (o *Orchestrator) handleFault(ctx context.Context, logger *slog.Logger, job *queue.Job, stage queue.Stage, stageErr error) error {
	category := retry.Classify(stageErr)
	policy := retry.PolicyFor(category)

	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed without error detail", StageLabel(stage))
	}

	// Faults can arrive before BeginStage ran (missing video), so stamp the
	// failing stage before MarkFailed resets its progress entry.
	job.CurrentStage = stage
	job.MarkFailed(string(category), message)
	job.MaxRetries = policy.MaxRetries

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldFailureCategory, string(category)),
		logging.String("policy", policy.Description),
		logging.Int("retry_count", job.RetryCount),
		logging.Int("max_retries", policy.MaxRetries),
		logging.Error(stageErr),
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	if policy.ShouldDeadLetter(job.RetryCount) {
		logger.Warn("job dead-lettered",
			logging.String(logging.FieldEventType, "dead_letter"),
			logging.String(logging.FieldFailureCategory, string(category)),
		)
		if err := o.videoStore.SetStatus(ctx, job.VideoID, videos.StatusFailed, ""); err != nil {
			logger.Warn("failed to mark video failed", logging.Error(err))
		}
	} else {
		delay := policy.NextDelay(job.RetryCount)
		job.ScheduleRetry(time.Now().Add(delay))
		logger.Info("retry scheduled",
			logging.String(logging.FieldEventType, "retry_scheduled"),
			logging.Duration("delay", delay),
			logging.Int("retry_count", job.RetryCount),
		)
	}

	if err := o.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}
