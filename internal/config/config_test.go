package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"youtuberag/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Tools.YtDlpBinary != "yt-dlp" {
		t.Fatalf("expected default binary, got %q", cfg.Tools.YtDlpBinary)
	}
	if cfg.Workflow.MaxConcurrentJobs <= 0 {
		t.Fatalf("expected positive default worker count, got %d", cfg.Workflow.MaxConcurrentJobs)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[tools]
whisper_model = "small"

[workflow]
max_concurrent_jobs = 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file located at %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Tools.WhisperModel != "small" {
		t.Fatalf("override lost: %q", cfg.Tools.WhisperModel)
	}
	if cfg.Workflow.MaxConcurrentJobs != 7 {
		t.Fatalf("override lost: %d", cfg.Workflow.MaxConcurrentJobs)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	// Untouched sections keep defaults.
	if cfg.Tools.FFmpegBinary != "ffmpeg" {
		t.Fatalf("default lost: %q", cfg.Tools.FFmpegBinary)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[workflow]
max_concurrent_jobs = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown log format")
	}
}

func TestAPITokenEnvOverride(t *testing.T) {
	t.Setenv("YOUTUBERAG_API_TOKEN", "secret-token")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.APIToken != "secret-token" {
		t.Fatalf("expected env token applied, got %q", cfg.Paths.APIToken)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing sections: %s", data)
	}

	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.DownloadDir, cfg.Paths.AudioDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
	if got := cfg.DatabasePath(); got != filepath.Join(cfg.Paths.DataDir, "youtuberag.db") {
		t.Fatalf("unexpected database path: %s", got)
	}
}
