package testsupport

import (
	"context"
	"testing"

	"youtuberag/internal/config"
	"youtuberag/internal/queue"
	"youtuberag/internal/videos"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVideo creates a video record for tests using the provided store.
func NewVideo(t testing.TB, store *queue.Store, url, userID string) *videos.Video {
	t.Helper()

	video, err := videos.NewStore(store.DB()).Create(context.Background(), url, userID)
	if err != nil {
		t.Fatalf("videos.Create: %v", err)
	}
	return video
}

// NewJob creates a queued transcription job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, videoID, userID string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), videoID, userID, queue.JobTypeTranscription, queue.PriorityNormal)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
