package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks a video through its processing lifecycle.
type Status string

const (
	StatusIngested   Status = "ingested"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Video is the resource a processing job operates on.
type Video struct {
	ID        string
	URL       string
	Title     string
	UserID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the video repository. It shares the job store's database file.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database connection. The schema is owned by the
// queue store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a video row for a freshly ingested URL.
func (s *Store) Create(ctx context.Context, url, userID string) (*Video, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("video url is required")
	}
	now := time.Now().UTC()
	video := &Video{
		ID:        uuid.NewString(),
		URL:       url,
		UserID:    userID,
		Status:    StatusIngested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	timestamp := now.Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (id, url, title, user_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.URL, nil, nullableString(userID), string(video.Status), timestamp, timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	return video, nil
}

// GetByID fetches a video by identifier. A missing video returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, user_id, status, created_at, updated_at FROM videos WHERE id = ?`, id)

	var (
		video      Video
		title      sql.NullString
		userID     sql.NullString
		statusStr  string
		createdRaw string
		updatedRaw string
	)
	err := row.Scan(&video.ID, &video.URL, &title, &userID, &statusStr, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	video.Title = title.String
	video.UserID = userID.String
	video.Status = Status(statusStr)
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		video.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		video.UpdatedAt = updated
	}
	return &video, nil
}

// SetStatus updates the lifecycle status, optionally recording the resolved title.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, title string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		res sql.Result
		err error
	)
	if title != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE videos SET status = ?, title = ?, updated_at = ? WHERE id = ?`,
			string(status), title, now, id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), now, id)
	}
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("video status rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("video %s not found", id)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
