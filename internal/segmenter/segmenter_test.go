package segmenter_test

import (
	"strings"
	"testing"

	"youtuberag/internal/segmenter"
	"youtuberag/internal/services/whisper"
)

func seg(start, end float64, text string) whisper.Segment {
	return whisper.Segment{Start: start, End: end, Text: text}
}

func TestSplitEmptyTranscript(t *testing.T) {
	units := segmenter.Split(nil, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	if len(units) != 0 {
		t.Fatalf("expected no units, got %d", len(units))
	}
}

func TestSplitSingleWindow(t *testing.T) {
	segments := []whisper.Segment{
		seg(0, 4, "welcome back"),
		seg(4, 9, "today we cover goroutines"),
		seg(9, 15, "and channels"),
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	unit := units[0]
	if unit.Index != 0 || unit.Start != 0 || unit.End != 15 {
		t.Fatalf("unexpected bounds: %#v", unit)
	}
	if unit.Text != "welcome back today we cover goroutines and channels" {
		t.Fatalf("unexpected text: %q", unit.Text)
	}
}

func TestSplitByDuration(t *testing.T) {
	segments := []whisper.Segment{
		seg(0, 25, "first"),
		seg(25, 50, "second"),
		seg(50, 75, "third"),
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].End != 50 {
		t.Fatalf("first unit should stop before the span overflows: %#v", units[0])
	}
	if units[1].Start != 50 || !strings.Contains(units[1].Text, "third") {
		t.Fatalf("unexpected second unit: %#v", units[1])
	}
}

func TestSplitByTextLength(t *testing.T) {
	long := strings.Repeat("a", 600)
	segments := []whisper.Segment{
		seg(0, 1, long),
		seg(1, 2, long),
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	if len(units) != 2 {
		t.Fatalf("expected text cap to split, got %d units", len(units))
	}
}

func TestSplitOverlapCarriesTrailingSegments(t *testing.T) {
	segments := []whisper.Segment{
		seg(0, 30, "one"),
		seg(30, 59, "two"),
		seg(59, 90, "three"),
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000, Overlap: 1})
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if !strings.Contains(units[1].Text, "two") {
		t.Fatalf("expected overlap segment carried into next unit: %#v", units[1])
	}
	if units[1].Start != 30 {
		t.Fatalf("overlap unit should start at the carried segment: %#v", units[1])
	}
}

func TestSplitSkipsEmptySegments(t *testing.T) {
	segments := []whisper.Segment{
		seg(0, 2, "  "),
		seg(2, 5, "content"),
		seg(5, 6, ""),
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Text != "content" {
		t.Fatalf("unexpected text: %q", units[0].Text)
	}
}

func TestSplitOversizedSegmentStandsAlone(t *testing.T) {
	segments := []whisper.Segment{
		seg(0, 300, "a very long uninterrupted monologue"),
		seg(300, 305, "closing words"),
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	if len(units) != 2 {
		t.Fatalf("expected oversized segment isolated, got %d units", len(units))
	}
	if units[0].End != 300 {
		t.Fatalf("unexpected first unit: %#v", units[0])
	}
}

func TestSplitIndicesAreSequential(t *testing.T) {
	var segments []whisper.Segment
	for i := 0; i < 10; i++ {
		segments = append(segments, seg(float64(i*30), float64(i*30+30), "chunk"))
	}
	units := segmenter.Split(segments, segmenter.Options{MaxSeconds: 60, MaxChars: 1000})
	for i, unit := range units {
		if unit.Index != i {
			t.Fatalf("unit %d carries index %d", i, unit.Index)
		}
	}
}
