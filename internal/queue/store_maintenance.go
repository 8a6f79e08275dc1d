package queue

import (
	"context"
	"fmt"
	"time"
)

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Failed    int
	Completed int
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusRunning:
			health.Running += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

// ResetStuckRunning flips jobs left in running back to pending so a restarted
// daemon resumes them. Stage progress is preserved; the interrupted stage is
// retried in place.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, now, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFinishedBefore removes completed jobs older than cutoff. Dead-lettered
// jobs are swept too unless retainDeadLettered is set.
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time, retainDeadLettered bool) (int64, error) {
	boundary := cutoff.UTC().Format(time.RFC3339Nano)

	query := `DELETE FROM jobs WHERE (status = ? AND completed_at IS NOT NULL AND completed_at <= ?)`
	args := []any{StatusCompleted, boundary}
	if !retainDeadLettered {
		query += ` OR (status = ? AND next_retry_at IS NULL AND failed_at IS NOT NULL AND failed_at <= ?)`
		args = append(args, StatusFailed, boundary)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes jobs. With all set, every job goes; otherwise only finished
// ones (completed and dead-lettered).
func (s *Store) Clear(ctx context.Context, all bool) (int64, error) {
	if all {
		res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
		if err != nil {
			return 0, fmt.Errorf("clear jobs: %w", err)
		}
		return res.RowsAffected()
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE status = ? OR (status = ? AND next_retry_at IS NULL)`,
		StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}
