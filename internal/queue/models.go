package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a processing job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Stage identifies one ordered step of the processing pipeline.
type Stage string

const (
	StageNone            Stage = "none"
	StageDownload        Stage = "download"
	StageAudioExtraction Stage = "audio_extraction"
	StageTranscription   Stage = "transcription"
	StageSegmentation    Stage = "segmentation"
)

// PipelineStages lists the pipeline stages in execution order. The table is
// closed: StageWeights must be updated together with it.
var PipelineStages = []Stage{
	StageDownload,
	StageAudioExtraction,
	StageTranscription,
	StageSegmentation,
}

// NextStage returns the stage following s in pipeline order. The second return
// is false when s is the final stage or not a pipeline stage.
func NextStage(s Stage) (Stage, bool) {
	for i, stage := range PipelineStages {
		if stage == s {
			if i+1 < len(PipelineStages) {
				return PipelineStages[i+1], true
			}
			return StageNone, false
		}
	}
	if s == StageNone {
		return PipelineStages[0], true
	}
	return StageNone, false
}

// FinalStage returns the last stage of the pipeline.
func FinalStage() Stage {
	return PipelineStages[len(PipelineStages)-1]
}

// JobType enumerates the purpose of a job, orthogonal to its stage.
type JobType string

const (
	JobTypeTranscription       JobType = "transcription"
	JobTypeEmbeddingGeneration JobType = "embedding_generation"
)

// Priority orders competing pending jobs.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
)

// DefaultMaxRetries is the retry budget recorded on newly created jobs. The
// retry engine overwrites it with the policy of the classified category on the
// first fault.
const DefaultMaxRetries = 3

// Job represents a processing job persisted in SQLite.
type Job struct {
	ID                  int64
	VideoID             string
	UserID              string
	Type                JobType
	Status              Status
	CurrentStage        Stage
	StageProgress       map[Stage]int
	Progress            int
	Metadata            map[string]string
	RetryCount          int
	MaxRetries          int
	LastFailureCategory string
	ErrorMessage        string
	NextRetryAt         *time.Time
	FailedAt            *time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Priority            Priority
	QueueJobID          string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseStage converts a string into a known pipeline Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == StageNone {
		return StageNone, true
	}
	for _, stage := range PipelineStages {
		if stage == normalized {
			return stage, true
		}
	}
	return StageNone, false
}

// BeginStage transitions the job into stage, resetting that stage's progress
// and clearing transient failure bookkeeping. Progress marks of earlier
// completed stages are untouched.
func (j *Job) BeginStage(stage Stage) {
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.CurrentStage = stage
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.ErrorMessage = ""
	j.NextRetryAt = nil
	j.SetStageProgress(stage, 0)
}

// SetStageProgress records a progress percentage for a stage and recomputes
// the derived overall progress.
func (j *Job) SetStageProgress(stage Stage, percent int) {
	if j.StageProgress == nil {
		j.StageProgress = make(map[Stage]int, len(PipelineStages))
	}
	j.StageProgress[stage] = percent
	j.Progress = OverallProgress(j.StageProgress)
}

// CompleteStage marks stage as finished, merges the metadata it produced, and
// completes the job when stage is the final one. Mid-pipeline the job returns
// to pending so the scheduler can hand it to the next stage's orchestrator.
func (j *Job) CompleteStage(stage Stage, produced map[string]string) {
	j.SetStageProgress(stage, 100)
	j.MergeMetadata(produced)
	if stage == FinalStage() {
		now := time.Now().UTC()
		j.Status = StatusCompleted
		j.CompletedAt = &now
		return
	}
	j.Status = StatusPending
}

// MarkFailed records a fault on the job. Only the currently failing stage's
// progress entry is reset; earlier stages keep their marks.
func (j *Job) MarkFailed(category, message string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.LastFailureCategory = category
	j.ErrorMessage = message
	j.FailedAt = &now
	j.NextRetryAt = nil
	if j.CurrentStage != StageNone {
		j.SetStageProgress(j.CurrentStage, 0)
	}
}

// ScheduleRetry flips a failed job back to pending with a retry time, keeping
// the current stage so the job is retried in place.
func (j *Job) ScheduleRetry(at time.Time) {
	j.RetryCount++
	j.Status = StatusPending
	retryAt := at.UTC()
	j.NextRetryAt = &retryAt
}

// IsDeadLettered reports whether the job failed terminally: no retry is
// scheduled and no further automatic processing will occur.
func (j *Job) IsDeadLettered() bool {
	return j.Status == StatusFailed && j.NextRetryAt == nil && j.FailedAt != nil
}

// IsFinished reports whether the job reached a terminal state.
func (j *Job) IsFinished() bool {
	return j.Status == StatusCompleted || j.IsDeadLettered()
}

// StageCompleted reports whether a stage already carries a full progress mark.
func (j *Job) StageCompleted(stage Stage) bool {
	return j.StageProgress[stage] == 100
}
