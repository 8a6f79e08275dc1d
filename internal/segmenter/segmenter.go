// Package segmenter windows a transcript into searchable units. It is pure:
// no I/O, deterministic for a given transcript and options.
package segmenter

import (
	"strings"

	"youtuberag/internal/config"
	"youtuberag/internal/services/whisper"
)

// Unit is one searchable chunk of transcript.
type Unit struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Options bound the size of produced units.
type Options struct {
	// MaxSeconds caps the covered time span of a unit.
	MaxSeconds int
	// MaxChars caps the text length of a unit.
	MaxChars int
	// Overlap carries this many trailing transcript segments into the next
	// unit so phrases crossing a boundary stay searchable.
	Overlap int
}

// OptionsFromConfig maps the segmentation config section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxSeconds: cfg.Segmentation.MaxSegmentSeconds,
		MaxChars:   cfg.Segmentation.MaxSegmentChars,
		Overlap:    cfg.Segmentation.OverlapSegments,
	}
}

// Split windows transcript segments into units. Empty-text segments are
// skipped; a single oversized segment still becomes its own unit.
func Split(segments []whisper.Segment, opts Options) []Unit {
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = 60
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 1000
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	var (
		units   []Unit
		window  []whisper.Segment
		textLen int
	)

	flush := func() {
		if len(window) == 0 {
			return
		}
		units = append(units, buildUnit(len(units), window))
		if opts.Overlap > 0 && opts.Overlap < len(window) {
			carried := window[len(window)-opts.Overlap:]
			window = append([]whisper.Segment{}, carried...)
		} else {
			window = nil
		}
		textLen = windowTextLen(window)
	}

	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if len(window) > 0 && wouldOverflow(window, segment, textLen+len(text), opts) {
			flush()
		}
		window = append(window, segment)
		textLen += len(text)
	}
	if len(window) > 0 {
		units = append(units, buildUnit(len(units), window))
	}
	return units
}

func wouldOverflow(window []whisper.Segment, next whisper.Segment, newTextLen int, opts Options) bool {
	span := next.End - window[0].Start
	return span > float64(opts.MaxSeconds) || newTextLen > opts.MaxChars
}

func windowTextLen(window []whisper.Segment) int {
	total := 0
	for _, segment := range window {
		total += len(strings.TrimSpace(segment.Text))
	}
	return total
}

func buildUnit(index int, window []whisper.Segment) Unit {
	parts := make([]string, 0, len(window))
	for _, segment := range window {
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return Unit{
		Index: index,
		Start: window[0].Start,
		End:   window[len(window)-1].End,
		Text:  strings.Join(parts, " "),
	}
}
