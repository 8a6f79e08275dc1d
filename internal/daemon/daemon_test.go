package daemon_test

import (
	"context"
	"testing"

	"youtuberag/internal/daemon"
	"youtuberag/internal/logging"
	"youtuberag/internal/pipeline"
	"youtuberag/internal/testsupport"
	"youtuberag/internal/videos"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	videoStore := videos.NewStore(store.DB())
	manager := pipeline.NewManager(cfg, store, videoStore, logging.NewNop())

	d, err := daemon.New(cfg, store, videoStore, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.QueueDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected diagnostic paths, got %#v", status)
	}

	// Second start should fail while the first holds the lock.
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonNewRejectsMissingDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil dependencies")
	}
}
