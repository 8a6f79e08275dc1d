// Package ffmpeg wraps the ffmpeg binary for the audio extraction stage.
package ffmpeg

import (
	"context"
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

const stageName = "audio_extraction"

// Whisper wants 16 kHz mono input.
const (
	sampleRate = "16000"
	channels   = "1"
)

// Extractor derives a normalized audio track from a downloaded video file.
type Extractor struct {
	binary  string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs an Extractor from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	return &Extractor{
		binary:  cfg.Tools.FFmpegBinary,
		dir:     cfg.Paths.AudioDir,
		timeout: time.Duration(cfg.Tools.ExtractTimeout) * time.Second,
		logger:  logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Extract writes a 16 kHz mono wav for the given video file and returns its path.
func (e *Extractor) Extract(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", services.Wrap(services.ErrResourceBusy, stageName, "open input",
			fmt.Sprintf("video file not ready: %s", videoPath), err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	audioPath := filepath.Join(e.dir, base+".wav")

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", channels,
		"-ar", sampleRate,
		"-f", "wav",
		audioPath,
	}

	start := time.Now()
	if _, err := services.RunCommand(ctx, stageName, "extract audio", e.binary, args...); err != nil {
		return "", err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "verify output",
			fmt.Sprintf("ffmpeg produced no file at %s", audioPath), err)
	}

	e.logger.Info("audio extracted",
		logging.String("file", audioPath),
		logging.Duration("elapsed", time.Since(start)),
	)
	return audioPath, nil
}
