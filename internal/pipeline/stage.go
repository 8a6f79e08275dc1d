package pipeline

import (
	"context"
	"strings"
	"unicode"

	"youtuberag/internal/queue"
	"youtuberag/internal/videos"
)

// Handler performs one stage's opaque operation for a job. Run returns the
// metadata keys the stage produced; the orchestrator merges them into the
// job's accumulating metadata bag. Handlers signal required-metadata gaps with
// a configuration-tagged error: those are bugs, not retryable faults.
type Handler interface {
	Stage() queue.Stage
	Run(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error)
}

// Scheduler asks the background queue to run a stage for a job. Delivery is
// at-least-once with a single in-flight execution per job id; the returned
// queue job id is recorded for diagnostics only.
type Scheduler interface {
	Enqueue(ctx context.Context, stage queue.Stage, jobID int64) (string, error)
}

// StageLabel renders a stage identifier for human-facing output
// ("audio_extraction" -> "Audio Extraction").
func StageLabel(stage queue.Stage) string {
	if stage == queue.StageNone {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(stage), "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
