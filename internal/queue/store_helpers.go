package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, video_id, user_id, job_type, status, current_stage, stage_progress_json, progress, metadata_json, retry_count, max_retries, last_failure_category, error_message, next_retry_at, failed_at, started_at, completed_at, created_at, updated_at, priority, queue_job_id"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		videoID         string
		userID          sql.NullString
		jobType         string
		statusStr       string
		currentStage    string
		stageProgress   sql.NullString
		progress        sql.NullInt64
		metadata        sql.NullString
		retryCount      sql.NullInt64
		maxRetries      sql.NullInt64
		failureCategory sql.NullString
		errorMessage    sql.NullString
		nextRetryRaw    sql.NullString
		failedRaw       sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		priority        sql.NullInt64
		queueJobID      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&userID,
		&jobType,
		&statusStr,
		&currentStage,
		&stageProgress,
		&progress,
		&metadata,
		&retryCount,
		&maxRetries,
		&failureCategory,
		&errorMessage,
		&nextRetryRaw,
		&failedRaw,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
		&priority,
		&queueJobID,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                  id,
		VideoID:             videoID,
		UserID:              userID.String,
		Type:                JobType(jobType),
		Status:              Status(statusStr),
		CurrentStage:        Stage(currentStage),
		StageProgress:       unmarshalStageProgress(stageProgress.String),
		Progress:            int(progress.Int64),
		Metadata:            unmarshalMetadata(metadata.String),
		RetryCount:          int(retryCount.Int64),
		MaxRetries:          int(maxRetries.Int64),
		LastFailureCategory: failureCategory.String,
		ErrorMessage:        errorMessage.String,
		Priority:            Priority(priority.Int64),
		QueueJobID:          queueJobID.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	job.NextRetryAt = parseNullableTime(nextRetryRaw)
	job.FailedAt = parseNullableTime(failedRaw)
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)

	return job, nil
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
