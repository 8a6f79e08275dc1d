package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	DownloadDir string `toml:"download_dir"`
	AudioDir    string `toml:"audio_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Tools contains configuration for the external stage binaries.
type Tools struct {
	YtDlpBinary       string `toml:"ytdlp_binary"`
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	WhisperBinary     string `toml:"whisper_binary"`
	WhisperModel      string `toml:"whisper_model"`
	DownloadTimeout   int    `toml:"download_timeout"`
	ExtractTimeout    int    `toml:"extract_timeout"`
	TranscribeTimeout int    `toml:"transcribe_timeout"`
}

// Segmentation contains configuration for transcript segmentation.
type Segmentation struct {
	MaxSegmentSeconds int `toml:"max_segment_seconds"`
	MaxSegmentChars   int `toml:"max_segment_chars"`
	OverlapSegments   int `toml:"overlap_segments"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval     int  `toml:"queue_poll_interval"`
	MaxConcurrentJobs     int  `toml:"max_concurrent_jobs"`
	RetentionSweepMinutes int  `toml:"retention_sweep_minutes"`
	RetentionDays         int  `toml:"retention_days"`
	RetainDeadLettered    bool `toml:"retain_dead_lettered"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the processing daemon.
//
// Configuration sections by subsystem:
//   - Paths: working directories and API bind address
//   - Tools: external binaries the stage operations shell out to
//   - Segmentation: transcript chunking thresholds
//   - Workflow: daemon polling intervals and retention
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Tools        Tools        `toml:"tools"`
	Segmentation Segmentation `toml:"segmentation"`
	Workflow     Workflow     `toml:"workflow"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/youtuberag/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded. A missing file yields pure defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DataDir,
		&c.Paths.DownloadDir,
		&c.Paths.AudioDir,
		&c.Paths.LogDir,
	}
	for _, field := range pathFields {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	if token := os.Getenv("YOUTUBERAG_API_TOKEN"); token != "" {
		c.Paths.APIToken = token
	}
	return nil
}

// EnsureDirectories creates every configured working directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.DownloadDir, c.Paths.AudioDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "youtuberag.db")
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	value := strings.TrimSpace(pathValue)
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if value == "~" {
			return home, nil
		}
		value = filepath.Join(home, value[2:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", pathValue, err)
	}
	return abs, nil
}
