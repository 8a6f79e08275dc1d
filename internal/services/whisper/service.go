// Package whisper wraps the whisper binary for the transcription stage and
// parses its JSON transcript output.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"youtuberag/internal/config"
	"youtuberag/internal/logging"
	"youtuberag/internal/services"
)

const stageName = "transcription"

// Segment is one timed span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the parsed output of a transcription run.
type Transcript struct {
	Language string    `json:"language"`
	Model    string    `json:"model"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Path     string    `json:"-"`
}

// Transcriber runs speech-to-text over extracted audio.
type Transcriber struct {
	binary  string
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs a Transcriber from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		binary:  cfg.Tools.WhisperBinary,
		model:   cfg.Tools.WhisperModel,
		timeout: time.Duration(cfg.Tools.TranscribeTimeout) * time.Second,
		logger:  logging.NewComponentLogger(logger, "whisper"),
	}
}

// Model returns the configured model name.
func (t *Transcriber) Model() string {
	return t.model
}

// Transcribe runs whisper over the audio file and returns the parsed
// transcript. The raw JSON transcript is left next to the audio file and its
// path recorded on the result.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return Transcript{}, services.Wrap(services.ErrResourceBusy, stageName, "open input",
			fmt.Sprintf("audio file not ready: %s", audioPath), err)
	}

	outputDir := filepath.Dir(audioPath)
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{
		audioPath,
		"--model", t.model,
		"--output_format", "json",
		"--output_dir", outputDir,
	}

	start := time.Now()
	if _, err := services.RunCommand(ctx, stageName, "transcribe", t.binary, args...); err != nil {
		return Transcript{}, err
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	transcriptPath := filepath.Join(outputDir, base+".json")
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, stageName, "read transcript",
			fmt.Sprintf("whisper produced no transcript at %s", transcriptPath), err)
	}

	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, stageName, "parse transcript",
			"transcript was not valid JSON", err)
	}
	transcript.Model = t.model
	transcript.Language = NormalizeLanguage(transcript.Language)
	transcript.Path = transcriptPath

	t.logger.Info("transcription finished",
		logging.String("language", transcript.Language),
		logging.Int("segments", len(transcript.Segments)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return transcript, nil
}

// NormalizeLanguage canonicalizes a language tag reported by whisper
// ("en", "EN-us", "english" variants come back inconsistently across models).
// Unparseable values pass through trimmed and lowercased.
func NormalizeLanguage(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	base, _ := tag.Base()
	return base.String()
}
