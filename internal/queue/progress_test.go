package queue_test

import (
	"testing"

	"youtuberag/internal/queue"
)

func TestOverallProgress(t *testing.T) {
	cases := []struct {
		name     string
		progress map[queue.Stage]int
		expected int
	}{
		{
			name:     "empty",
			progress: nil,
			expected: 0,
		},
		{
			name: "download complete",
			progress: map[queue.Stage]int{
				queue.StageDownload: 100,
			},
			expected: 20,
		},
		{
			name: "download and audio complete",
			progress: map[queue.Stage]int{
				queue.StageDownload:        100,
				queue.StageAudioExtraction: 100,
			},
			expected: 35,
		},
		{
			name: "transcription done",
			progress: map[queue.Stage]int{
				queue.StageDownload:        100,
				queue.StageAudioExtraction: 100,
				queue.StageTranscription:   100,
			},
			expected: 85,
		},
		{
			name: "all stages complete",
			progress: map[queue.Stage]int{
				queue.StageDownload:        100,
				queue.StageAudioExtraction: 100,
				queue.StageTranscription:   100,
				queue.StageSegmentation:    100,
			},
			expected: 100,
		},
		{
			name: "partial transcription",
			progress: map[queue.Stage]int{
				queue.StageDownload:        100,
				queue.StageAudioExtraction: 100,
				queue.StageTranscription:   50,
			},
			expected: 60,
		},
		{
			name: "rounds to nearest",
			progress: map[queue.Stage]int{
				queue.StageDownload: 33,
			},
			expected: 7, // 6.6 rounds up
		},
		{
			name: "rounds down below half",
			progress: map[queue.Stage]int{
				queue.StageDownload: 12,
			},
			expected: 2, // 2.4 rounds down
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := queue.OverallProgress(tc.progress); got != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestStageWeightsSumTo100(t *testing.T) {
	sum := 0
	for _, stage := range queue.PipelineStages {
		weight, ok := queue.StageWeights[stage]
		if !ok {
			t.Fatalf("stage %s has no weight", stage)
		}
		sum += weight
	}
	if sum != 100 {
		t.Fatalf("stage weights sum to %d, want 100", sum)
	}
}
