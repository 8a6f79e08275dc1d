package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"youtuberag/internal/queue"
	"youtuberag/internal/segmenter"
	"youtuberag/internal/services"
	"youtuberag/internal/services/ffmpeg"
	"youtuberag/internal/services/whisper"
	"youtuberag/internal/services/ytdlp"
	"youtuberag/internal/videos"
)

// DownloadHandler fetches the source video.
type DownloadHandler struct {
	downloader *ytdlp.Downloader
}

func NewDownloadHandler(downloader *ytdlp.Downloader) *DownloadHandler {
	return &DownloadHandler{downloader: downloader}
}

func (h *DownloadHandler) Stage() queue.Stage { return queue.StageDownload }

func (h *DownloadHandler) Run(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error) {
	result, err := h.downloader.Download(ctx, video.URL)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		queue.MetaVideoFilePath: result.FilePath,
		queue.MetaVideoTitle:    result.Title,
		queue.MetaVideoDuration: strconv.FormatFloat(result.Duration, 'f', -1, 64),
	}, nil
}

// AudioExtractionHandler derives the audio track from the downloaded file.
type AudioExtractionHandler struct {
	extractor *ffmpeg.Extractor
}

func NewAudioExtractionHandler(extractor *ffmpeg.Extractor) *AudioExtractionHandler {
	return &AudioExtractionHandler{extractor: extractor}
}

func (h *AudioExtractionHandler) Stage() queue.Stage { return queue.StageAudioExtraction }

func (h *AudioExtractionHandler) Run(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error) {
	videoPath, err := requireMetadata(job, queue.StageAudioExtraction, queue.MetaVideoFilePath)
	if err != nil {
		return nil, err
	}
	audioPath, err := h.extractor.Extract(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	return map[string]string{queue.MetaAudioFilePath: audioPath}, nil
}

// TranscriptionHandler runs speech-to-text over the extracted audio.
type TranscriptionHandler struct {
	transcriber *whisper.Transcriber
}

func NewTranscriptionHandler(transcriber *whisper.Transcriber) *TranscriptionHandler {
	return &TranscriptionHandler{transcriber: transcriber}
}

func (h *TranscriptionHandler) Stage() queue.Stage { return queue.StageTranscription }

func (h *TranscriptionHandler) Run(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error) {
	audioPath, err := requireMetadata(job, queue.StageTranscription, queue.MetaAudioFilePath)
	if err != nil {
		return nil, err
	}
	transcript, err := h.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		queue.MetaTranscriptPath: transcript.Path,
		queue.MetaLanguage:       transcript.Language,
		queue.MetaModel:          transcript.Model,
	}, nil
}

// SegmentationHandler windows the transcript into searchable units and writes
// them next to the transcript.
type SegmentationHandler struct {
	opts segmenter.Options
}

func NewSegmentationHandler(opts segmenter.Options) *SegmentationHandler {
	return &SegmentationHandler{opts: opts}
}

func (h *SegmentationHandler) Stage() queue.Stage { return queue.StageSegmentation }

func (h *SegmentationHandler) Run(ctx context.Context, job *queue.Job, video *videos.Video) (map[string]string, error) {
	const stage = queue.StageSegmentation

	transcriptPath, err := requireMetadata(job, stage, queue.MetaTranscriptPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, services.Wrap(services.ErrResourceBusy, string(stage), "read transcript",
			fmt.Sprintf("transcript not ready: %s", transcriptPath), err)
	}
	var transcript whisper.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, services.Wrap(services.ErrValidation, string(stage), "parse transcript",
			"transcript was not valid JSON", err)
	}

	units := segmenter.Split(transcript.Segments, h.opts)

	base := strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath))
	unitsPath := base + ".segments.json"
	payload, err := json.Marshal(units)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, string(stage), "encode segments", "", err)
	}
	if err := os.WriteFile(unitsPath, payload, 0o644); err != nil {
		return nil, services.Wrap(services.ErrResourceBusy, string(stage), "write segments",
			fmt.Sprintf("cannot write %s", unitsPath), err)
	}

	return map[string]string{
		queue.MetaSegmentCount: strconv.Itoa(len(units)),
	}, nil
}

// requireMetadata reads a key an earlier stage must have produced. A missing
// key is a configuration-shaped fault: a bug in the stage chain, not a
// retryable condition.
func requireMetadata(job *queue.Job, stage queue.Stage, key string) (string, error) {
	value, ok := job.MetadataValue(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", services.Wrap(services.ErrConfiguration, string(stage), "read metadata",
			fmt.Sprintf("required metadata key %q missing", key), nil)
	}
	return value, nil
}
