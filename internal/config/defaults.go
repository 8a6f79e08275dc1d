package config

const (
	defaultDataDir               = "~/.local/share/youtuberag"
	defaultDownloadDir           = "~/.local/share/youtuberag/downloads"
	defaultAudioDir              = "~/.local/share/youtuberag/audio"
	defaultLogDir                = "~/.local/share/youtuberag/logs"
	defaultAPIBind               = "127.0.0.1:62787"
	defaultYtDlpBinary           = "yt-dlp"
	defaultFFmpegBinary          = "ffmpeg"
	defaultWhisperBinary         = "whisper"
	defaultWhisperModel          = "base"
	defaultDownloadTimeout       = 1800
	defaultExtractTimeout        = 600
	defaultTranscribeTimeout     = 3600
	defaultMaxSegmentSeconds     = 60
	defaultMaxSegmentChars       = 1000
	defaultOverlapSegments       = 1
	defaultQueuePollInterval     = 5
	defaultMaxConcurrentJobs     = 2
	defaultRetentionSweepMinutes = 60
	defaultRetentionDays         = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			DownloadDir: defaultDownloadDir,
			AudioDir:    defaultAudioDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Tools: Tools{
			YtDlpBinary:       defaultYtDlpBinary,
			FFmpegBinary:      defaultFFmpegBinary,
			WhisperBinary:     defaultWhisperBinary,
			WhisperModel:      defaultWhisperModel,
			DownloadTimeout:   defaultDownloadTimeout,
			ExtractTimeout:    defaultExtractTimeout,
			TranscribeTimeout: defaultTranscribeTimeout,
		},
		Segmentation: Segmentation{
			MaxSegmentSeconds: defaultMaxSegmentSeconds,
			MaxSegmentChars:   defaultMaxSegmentChars,
			OverlapSegments:   defaultOverlapSegments,
		},
		Workflow: Workflow{
			QueuePollInterval:     defaultQueuePollInterval,
			MaxConcurrentJobs:     defaultMaxConcurrentJobs,
			RetentionSweepMinutes: defaultRetentionSweepMinutes,
			RetentionDays:         defaultRetentionDays,
			RetainDeadLettered:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
