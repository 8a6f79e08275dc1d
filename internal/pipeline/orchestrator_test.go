package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"youtuberag/internal/logging"
	"youtuberag/internal/pipeline"
	"youtuberag/internal/queue"
	"youtuberag/internal/services"
	"youtuberag/internal/testsupport"
	"youtuberag/internal/videos"
)

type stubHandler struct {
	stage queue.Stage
	run   func(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error)
}

func (h *stubHandler) Stage() queue.Stage { return h.stage }

func (h *stubHandler) Run(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error) {
	if h.run == nil {
		return nil, nil
	}
	return h.run(ctx, job, video)
}

type enqueueCall struct {
	stage queue.Stage
	jobID int64
}

type recordingScheduler struct {
	calls []enqueueCall
	err   error
}

func (s *recordingScheduler) Enqueue(ctx context.Context, stage queue.Stage, jobID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, enqueueCall{stage: stage, jobID: jobID})
	return fmt.Sprintf("queue-job-%d", len(s.calls)), nil
}

func passHandler(stage queue.Stage, produced map[string]string) *stubHandler {
	return &stubHandler{
		stage: stage,
		run: func(context.Context, *queue.Job, *videos.Video) (map[string]string, error) {
			return produced, nil
		},
	}
}

func failHandler(stage queue.Stage, err error) *stubHandler {
	return &stubHandler{
		stage: stage,
		run: func(context.Context, *queue.Job, *videos.Video) (map[string]string, error) {
			return nil, err
		},
	}
}

type fixture struct {
	store      *queue.Store
	videoStore *videos.Store
	scheduler  *recordingScheduler
	video      *videos.Video
	job        *queue.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	video := testsupport.NewVideo(t, store, "https://example.com/watch?v=orch", "user-1")
	job := testsupport.NewJob(t, store, video.ID, "user-1")
	return &fixture{
		store:      store,
		videoStore: videos.NewStore(store.DB()),
		scheduler:  &recordingScheduler{},
		video:      video,
		job:        job,
	}
}

func (f *fixture) orchestrator(t *testing.T, handlers ...pipeline.Handler) *pipeline.Orchestrator {
	t.Helper()
	return pipeline.NewOrchestrator(f.store, f.videoStore, f.scheduler, logging.NewNop(), handlers...)
}

func (f *fixture) reload(t *testing.T) *queue.Job {
	t.Helper()
	job, err := f.store.GetByID(context.Background(), f.job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job == nil {
		t.Fatalf("job %d vanished", f.job.ID)
	}
	return job
}

func TestRunStageSuccessChainsNextStage(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, passHandler(queue.StageDownload, map[string]string{
		queue.MetaVideoFilePath: "/downloads/orch.mp4",
		queue.MetaVideoTitle:    "Orchestration 101",
	}))

	if err := orch.RunStage(context.Background(), f.job.ID, queue.StageDownload); err != nil {
		t.Fatalf("RunStage failed: %v", err)
	}

	job := f.reload(t)
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending for next stage, got %s", job.Status)
	}
	if !job.StageCompleted(queue.StageDownload) {
		t.Fatal("expected download marked complete")
	}
	if job.Progress != 20 {
		t.Fatalf("expected progress 20, got %d", job.Progress)
	}
	if got, _ := job.MetadataValue(queue.MetaVideoFilePath); got != "/downloads/orch.mp4" {
		t.Fatalf("expected stage metadata persisted, got %q", got)
	}
	if job.QueueJobID == "" {
		t.Fatal("expected queue job id recorded after chaining")
	}

	if len(f.scheduler.calls) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(f.scheduler.calls))
	}
	call := f.scheduler.calls[0]
	if call.stage != queue.StageAudioExtraction || call.jobID != f.job.ID {
		t.Fatalf("unexpected enqueue: %#v", call)
	}

	video, err := f.videoStore.GetByID(context.Background(), f.video.ID)
	if err != nil {
		t.Fatalf("video GetByID failed: %v", err)
	}
	if video.Status != videos.StatusProcessing {
		t.Fatalf("expected video processing, got %s", video.Status)
	}
}

func TestRunStagePipelineCompletion(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t,
		passHandler(queue.StageDownload, map[string]string{queue.MetaVideoTitle: "Done"}),
		passHandler(queue.StageAudioExtraction, nil),
		passHandler(queue.StageTranscription, map[string]string{queue.MetaLanguage: "en"}),
		passHandler(queue.StageSegmentation, map[string]string{queue.MetaSegmentCount: "7"}),
	)

	ctx := context.Background()
	for _, stage := range queue.PipelineStages {
		if err := orch.RunStage(ctx, f.job.ID, stage); err != nil {
			t.Fatalf("RunStage(%s) failed: %v", stage, err)
		}
	}

	job := f.reload(t)
	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", job.Progress)
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completed_at stamped")
	}
	if got, _ := job.MetadataValue(queue.MetaLanguage); got != "en" {
		t.Fatalf("expected accumulated metadata, got %q", got)
	}

	// Three chain calls: the final stage completes instead of enqueueing.
	if len(f.scheduler.calls) != 3 {
		t.Fatalf("expected 3 enqueues, got %d", len(f.scheduler.calls))
	}

	video, err := f.videoStore.GetByID(ctx, f.video.ID)
	if err != nil {
		t.Fatalf("video GetByID failed: %v", err)
	}
	if video.Status != videos.StatusReady {
		t.Fatalf("expected video ready, got %s", video.Status)
	}
	if video.Title != "Done" {
		t.Fatalf("expected title propagated, got %q", video.Title)
	}
}

func TestRunStageTransientFaultSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	fault := services.Wrap(services.ErrTransient, "download", "fetch", "connection reset", nil)
	orch := f.orchestrator(t, failHandler(queue.StageDownload, fault))

	before := time.Now()
	err := orch.RunStage(context.Background(), f.job.ID, queue.StageDownload)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected stage error returned, got %v", err)
	}

	job := f.reload(t)
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry scheduling, got %s", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", job.RetryCount)
	}
	if job.MaxRetries != 5 {
		t.Fatalf("expected transient budget 5, got %d", job.MaxRetries)
	}
	if job.LastFailureCategory != "transient_network_error" {
		t.Fatalf("unexpected category %q", job.LastFailureCategory)
	}
	if job.CurrentStage != queue.StageDownload {
		t.Fatalf("retry must stay on the failed stage, got %s", job.CurrentStage)
	}
	if job.NextRetryAt == nil {
		t.Fatal("expected retry time set")
	}
	delay := job.NextRetryAt.Sub(before)
	if delay < 9*time.Second || delay > 12*time.Second {
		t.Fatalf("expected ~10s initial delay, got %s", delay)
	}
	if job.ErrorMessage == "" {
		t.Fatal("expected error message persisted")
	}
	if len(f.scheduler.calls) != 0 {
		t.Fatal("failed stage must not chain forward")
	}
}

func TestRunStagePermanentFaultDeadLettersImmediately(t *testing.T) {
	f := newFixture(t)
	fault := services.Wrap(services.ErrValidation, "download", "parse url", "unsupported url", nil)
	orch := f.orchestrator(t, failHandler(queue.StageDownload, fault))

	err := orch.RunStage(context.Background(), f.job.ID, queue.StageDownload)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected stage error returned, got %v", err)
	}

	job := f.reload(t)
	if !job.IsDeadLettered() {
		t.Fatalf("expected dead-lettered job, got %#v", job)
	}
	if job.RetryCount != 0 {
		t.Fatalf("permanent faults must not consume retries, got %d", job.RetryCount)
	}
	if job.MaxRetries != 0 {
		t.Fatalf("expected budget 0, got %d", job.MaxRetries)
	}
	if job.LastFailureCategory != "permanent_error" {
		t.Fatalf("unexpected category %q", job.LastFailureCategory)
	}

	video, err := f.videoStore.GetByID(context.Background(), f.video.ID)
	if err != nil {
		t.Fatalf("video GetByID failed: %v", err)
	}
	if video.Status != videos.StatusFailed {
		t.Fatalf("expected video failed, got %s", video.Status)
	}
}

func TestRunStageExhaustedBudgetDeadLetters(t *testing.T) {
	f := newFixture(t)
	fault := services.Wrap(services.ErrTransient, "download", "fetch", "connection reset", nil)
	orch := f.orchestrator(t, failHandler(queue.StageDownload, fault))

	ctx := context.Background()
	job := f.reload(t)
	job.RetryCount = 5
	if err := f.store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := orch.RunStage(ctx, f.job.ID, queue.StageDownload); err == nil {
		t.Fatal("expected stage error")
	}

	job = f.reload(t)
	if !job.IsDeadLettered() {
		t.Fatalf("expected dead-lettered after exhausted budget, got %#v", job)
	}
	if job.RetryCount != 5 {
		t.Fatalf("dead-lettering must not bump the count, got %d", job.RetryCount)
	}
}

func TestRunStageLaterFailureRetainsEarlierProgress(t *testing.T) {
	f := newFixture(t)
	fault := services.Wrap(services.ErrExternalTool, "audio_extraction", "run ffmpeg", "codec probe failed", nil)
	orch := f.orchestrator(t,
		passHandler(queue.StageDownload, map[string]string{queue.MetaVideoFilePath: "/downloads/x.mp4"}),
		failHandler(queue.StageAudioExtraction, fault),
	)

	ctx := context.Background()
	if err := orch.RunStage(ctx, f.job.ID, queue.StageDownload); err != nil {
		t.Fatalf("RunStage(download) failed: %v", err)
	}
	if err := orch.RunStage(ctx, f.job.ID, queue.StageAudioExtraction); err == nil {
		t.Fatal("expected audio extraction failure")
	}

	job := f.reload(t)
	if job.StageProgress[queue.StageDownload] != 100 {
		t.Fatal("download progress must survive a later stage failure")
	}
	if job.StageProgress[queue.StageAudioExtraction] != 0 {
		t.Fatal("failing stage progress must reset")
	}
	if job.Progress != 20 {
		t.Fatalf("expected overall progress 20, got %d", job.Progress)
	}
	if got, _ := job.MetadataValue(queue.MetaVideoFilePath); got != "/downloads/x.mp4" {
		t.Fatal("metadata from earlier stages must survive failures")
	}
}

func TestRunStageMissingJobIsOperatorError(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, passHandler(queue.StageDownload, nil))

	err := orch.RunStage(context.Background(), f.job.ID+100, queue.StageDownload)
	if err == nil {
		t.Fatal("expected error for missing job")
	}

	// The existing job must be untouched.
	job := f.reload(t)
	if job.Status != queue.StatusPending || job.RetryCount != 0 {
		t.Fatalf("unrelated job mutated: %#v", job)
	}
}

func TestRunStageMissingHandlerIsOperatorError(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t, passHandler(queue.StageDownload, nil))

	if err := orch.RunStage(context.Background(), f.job.ID, queue.StageTranscription); err == nil {
		t.Fatal("expected error for unregistered stage")
	}

	job := f.reload(t)
	if job.Status != queue.StatusPending {
		t.Fatalf("job must not be failed for an operator error, got %s", job.Status)
	}
}

func TestRunStageMissingVideoDeadLetters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	videoStore := videos.NewStore(store.DB())
	scheduler := &recordingScheduler{}

	ctx := context.Background()
	job, err := store.NewJob(ctx, "no-such-video", "", queue.JobTypeTranscription, queue.PriorityNormal)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	orch := pipeline.NewOrchestrator(store, videoStore, scheduler, logging.NewNop(),
		passHandler(queue.StageDownload, nil))

	runErr := orch.RunStage(ctx, job.ID, queue.StageDownload)
	if !errors.Is(runErr, services.ErrNotFound) {
		t.Fatalf("expected not-found fault, got %v", runErr)
	}

	stored, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.IsDeadLettered() {
		t.Fatalf("expected dead-lettered job, got %#v", stored)
	}
	if stored.LastFailureCategory != "permanent_error" {
		t.Fatalf("unexpected category %q", stored.LastFailureCategory)
	}
}

func TestRunStageVideoVanishedMidPipelineBlamesCurrentStage(t *testing.T) {
	f := newFixture(t)
	orch := f.orchestrator(t,
		passHandler(queue.StageDownload, map[string]string{queue.MetaVideoFilePath: "/downloads/x.mp4"}),
		passHandler(queue.StageAudioExtraction, nil),
	)

	ctx := context.Background()
	if err := orch.RunStage(ctx, f.job.ID, queue.StageDownload); err != nil {
		t.Fatalf("RunStage(download) failed: %v", err)
	}

	if _, err := f.store.DB().ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, f.video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}

	runErr := orch.RunStage(ctx, f.job.ID, queue.StageAudioExtraction)
	if !errors.Is(runErr, services.ErrNotFound) {
		t.Fatalf("expected not-found fault, got %v", runErr)
	}

	job := f.reload(t)
	if job.CurrentStage != queue.StageAudioExtraction {
		t.Fatalf("failure must be recorded against the running stage, got %s", job.CurrentStage)
	}
	if job.StageProgress[queue.StageDownload] != 100 {
		t.Fatal("download progress must survive a later stage failure")
	}
	if job.StageProgress[queue.StageAudioExtraction] != 0 {
		t.Fatal("failing stage progress must reset")
	}
	if job.Progress != 20 {
		t.Fatalf("expected overall progress 20, got %d", job.Progress)
	}
	if !job.IsDeadLettered() {
		t.Fatalf("expected dead-lettered job, got %#v", job)
	}
}

func TestRunStageChainFailureLeavesJobResumable(t *testing.T) {
	f := newFixture(t)
	f.scheduler.err = errors.New("queue unavailable")
	orch := f.orchestrator(t, passHandler(queue.StageDownload, nil))

	if err := orch.RunStage(context.Background(), f.job.ID, queue.StageDownload); err != nil {
		t.Fatalf("RunStage must tolerate a chain failure, got %v", err)
	}

	job := f.reload(t)
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending so the sweep can resume, got %s", job.Status)
	}
	if !job.StageCompleted(queue.StageDownload) {
		t.Fatal("completed work must stay durable despite the chain failure")
	}
}
