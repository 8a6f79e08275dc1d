package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewJob inserts a pending job for a video and returns the stored record.
func (s *Store) NewJob(ctx context.Context, videoID, userID string, jobType JobType, priority Priority) (*Job, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, errors.New("video id is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            video_id, user_id, job_type, status, current_stage,
            progress, retry_count, max_retries, created_at, updated_at, priority
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		videoID,
		nullableString(userID),
		string(jobType),
		StatusPending,
		StageNone,
		0,
		0,
		DefaultMaxRetries,
		timestamp,
		timestamp,
		int(priority),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists every mutable field of the job and stamps updated_at.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	now := time.Now().UTC()
	job.UpdatedAt = now

	stageProgressJSON, err := marshalStageProgress(job.StageProgress)
	if err != nil {
		return fmt.Errorf("marshal stage progress: %w", err)
	}
	metadataJSON, err := marshalMetadata(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            video_id = ?, user_id = ?, job_type = ?, status = ?, current_stage = ?,
            stage_progress_json = ?, progress = ?, metadata_json = ?,
            retry_count = ?, max_retries = ?, last_failure_category = ?,
            error_message = ?, next_retry_at = ?, failed_at = ?, started_at = ?,
            completed_at = ?, updated_at = ?, priority = ?, queue_job_id = ?
        WHERE id = ?`,
		job.VideoID,
		nullableString(job.UserID),
		string(job.Type),
		string(job.Status),
		string(job.CurrentStage),
		nullableString(stageProgressJSON),
		job.Progress,
		nullableString(metadataJSON),
		job.RetryCount,
		job.MaxRetries,
		nullableString(job.LastFailureCategory),
		nullableString(job.ErrorMessage),
		nullableTime(job.NextRetryAt),
		nullableTime(job.FailedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		now.Format(time.RFC3339Nano),
		int(job.Priority),
		nullableString(job.QueueJobID),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d not found", job.ID)
	}
	job.UpdatedAt = now
	return nil
}

// NextReady returns the highest-priority pending job whose retry time has
// elapsed, excluding the provided job ids. Returns (nil, nil) when no job is
// ready.
func (s *Store) NextReady(ctx context.Context, exclude []int64) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `SELECT ` + jobColumns + ` FROM jobs
        WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)`
	args := []any{StatusPending, now}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (` + makePlaceholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next ready job: %w", err)
	}
	return job, nil
}

// List returns jobs ordered newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FindByVideo returns every job referencing a video, newest first.
func (s *Store) FindByVideo(ctx context.Context, videoID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE video_id = ? ORDER BY created_at DESC, id DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("find jobs by video: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RetryJob manually requeues a dead-lettered job at its current stage with a
// fresh retry budget.
func (s *Store) RetryJob(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("job %d is %s, only failed jobs can be retried", id, job.Status)
	}

	job.Status = StatusPending
	job.RetryCount = 0
	job.ErrorMessage = ""
	job.LastFailureCategory = ""
	job.NextRetryAt = nil
	job.FailedAt = nil
	if err := s.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
