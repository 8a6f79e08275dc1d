package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"youtuberag/internal/pipeline"
	"youtuberag/internal/queue"
	"youtuberag/internal/segmenter"
	"youtuberag/internal/services"
	"youtuberag/internal/services/whisper"
)

func TestSegmentationHandlerWritesUnits(t *testing.T) {
	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "abc.json")
	transcript := whisper.Transcript{
		Language: "en",
		Segments: []whisper.Segment{
			{Start: 0, End: 5, Text: "hello there"},
			{Start: 5, End: 12, Text: "and welcome"},
		},
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		t.Fatalf("marshal transcript: %v", err)
	}
	if err := os.WriteFile(transcriptPath, data, 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	job := &queue.Job{}
	job.MergeMetadata(map[string]string{queue.MetaTranscriptPath: transcriptPath})

	handler := pipeline.NewSegmentationHandler(segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	produced, err := handler.Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if produced[queue.MetaSegmentCount] != "1" {
		t.Fatalf("expected 1 unit, got %q", produced[queue.MetaSegmentCount])
	}

	unitsPath := filepath.Join(dir, "abc.segments.json")
	payload, err := os.ReadFile(unitsPath)
	if err != nil {
		t.Fatalf("read units: %v", err)
	}
	var units []segmenter.Unit
	if err := json.Unmarshal(payload, &units); err != nil {
		t.Fatalf("parse units: %v", err)
	}
	if len(units) != 1 || units[0].Text != "hello there and welcome" {
		t.Fatalf("unexpected units: %#v", units)
	}
}

func TestSegmentationHandlerMissingTranscriptIsResourceFault(t *testing.T) {
	job := &queue.Job{}
	job.MergeMetadata(map[string]string{queue.MetaTranscriptPath: "/nonexistent/abc.json"})

	handler := pipeline.NewSegmentationHandler(segmenter.Options{})
	_, err := handler.Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrResourceBusy) {
		t.Fatalf("expected resource fault, got %v", err)
	}
}

func TestSegmentationHandlerInvalidTranscriptIsPermanent(t *testing.T) {
	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(transcriptPath, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	job := &queue.Job{}
	job.MergeMetadata(map[string]string{queue.MetaTranscriptPath: transcriptPath})

	handler := pipeline.NewSegmentationHandler(segmenter.Options{})
	_, err := handler.Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation fault, got %v", err)
	}
}

func TestHandlersRequireUpstreamMetadata(t *testing.T) {
	job := &queue.Job{}

	handlers := []pipeline.Handler{
		pipeline.NewAudioExtractionHandler(nil),
		pipeline.NewTranscriptionHandler(nil),
		pipeline.NewSegmentationHandler(segmenter.Options{}),
	}
	for _, handler := range handlers {
		_, err := handler.Run(context.Background(), job, nil)
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration fault for missing metadata, got %v", handler.Stage(), err)
		}
	}
}
