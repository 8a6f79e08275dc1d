// Package ytdlp wraps the yt-dlp binary for the download stage.
package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"youtuberag/internal/config"
	"youtuberag/internal/logging"
	"youtuberag/internal/services"
)

const stageName = "download"

// Result describes a completed download.
type Result struct {
	FilePath string
	Title    string
	Duration float64
}

// Downloader fetches source videos via yt-dlp.
type Downloader struct {
	binary  string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs a Downloader from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		binary:  cfg.Tools.YtDlpBinary,
		dir:     cfg.Paths.DownloadDir,
		timeout: time.Duration(cfg.Tools.DownloadTimeout) * time.Second,
		logger:  logging.NewComponentLogger(logger, "ytdlp"),
	}
}

type videoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Filename string  `json:"_filename"`
}

// Download fetches the video at url into the download directory and returns
// the resolved file path plus source metadata.
func (d *Downloader) Download(ctx context.Context, url string) (Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "download", "empty source url", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outputTemplate := filepath.Join(d.dir, "%(id)s.%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--restrict-filenames",
		"--print-json",
		"-o", outputTemplate,
		url,
	}

	start := time.Now()
	out, err := services.RunCommand(ctx, stageName, "download", d.binary, args...)
	if err != nil {
		return Result{}, err
	}

	var info videoInfo
	if jsonErr := json.Unmarshal([]byte(lastLine(out.Stdout)), &info); jsonErr != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "parse metadata", "yt-dlp output was not valid JSON", jsonErr)
	}
	if info.Filename == "" {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "parse metadata", "yt-dlp reported no output file", nil)
	}
	if _, statErr := os.Stat(info.Filename); statErr != nil {
		return Result{}, services.Wrap(services.ErrResourceBusy, stageName, "verify output",
			fmt.Sprintf("downloaded file not ready: %s", info.Filename), statErr)
	}

	d.logger.Info("download finished",
		logging.String("title", info.Title),
		logging.String("file", info.Filename),
		logging.Duration("elapsed", time.Since(start)),
	)
	return Result{FilePath: info.Filename, Title: info.Title, Duration: info.Duration}, nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
