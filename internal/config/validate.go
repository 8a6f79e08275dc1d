package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.AudioDir == "" {
		return errors.New("paths.audio_dir must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Tools.YtDlpBinary) == "" {
		return errors.New("tools.ytdlp_binary must be set")
	}
	if strings.TrimSpace(c.Tools.FFmpegBinary) == "" {
		return errors.New("tools.ffmpeg_binary must be set")
	}
	if strings.TrimSpace(c.Tools.WhisperBinary) == "" {
		return errors.New("tools.whisper_binary must be set")
	}
	if c.Tools.DownloadTimeout <= 0 {
		return errors.New("tools.download_timeout must be positive")
	}
	if c.Tools.ExtractTimeout <= 0 {
		return errors.New("tools.extract_timeout must be positive")
	}
	if c.Tools.TranscribeTimeout <= 0 {
		return errors.New("tools.transcribe_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSegmentation() error {
	if c.Segmentation.MaxSegmentSeconds <= 0 {
		return errors.New("segmentation.max_segment_seconds must be positive")
	}
	if c.Segmentation.MaxSegmentChars <= 0 {
		return errors.New("segmentation.max_segment_chars must be positive")
	}
	if c.Segmentation.OverlapSegments < 0 {
		return errors.New("segmentation.overlap_segments must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.MaxConcurrentJobs <= 0 {
		return errors.New("workflow.max_concurrent_jobs must be positive")
	}
	if c.Workflow.RetentionSweepMinutes <= 0 {
		return errors.New("workflow.retention_sweep_minutes must be positive")
	}
	if c.Workflow.RetentionDays <= 0 {
		return errors.New("workflow.retention_days must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
