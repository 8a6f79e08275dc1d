package retry_test

import (
	"context"
	"errors"
	"testing"

	"youtuberag/internal/retry"
	"youtuberag/internal/services"
)

func TestClassifyByType(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected retry.Category
	}{
		{
			"timeout sentinel",
			services.Wrap(services.ErrTimeout, "download", "run yt-dlp", "killed after 30m", nil),
			retry.CategoryTransientNetwork,
		},
		{
			"deadline exceeded",
			context.DeadlineExceeded,
			retry.CategoryTransientNetwork,
		},
		{
			"transient sentinel",
			services.Wrap(services.ErrTransient, "download", "fetch", "socket closed", nil),
			retry.CategoryTransientNetwork,
		},
		{
			"resource busy sentinel",
			services.Wrap(services.ErrResourceBusy, "audio_extraction", "open input", "file still downloading", nil),
			retry.CategoryResourceNotAvailable,
		},
		{
			"validation sentinel",
			services.Wrap(services.ErrValidation, "download", "parse url", "not a watch url", nil),
			retry.CategoryPermanent,
		},
		{
			"configuration sentinel",
			services.Wrap(services.ErrConfiguration, "transcription", "locate binary", "whisper missing", nil),
			retry.CategoryPermanent,
		},
		{
			"not found sentinel",
			services.Wrap(services.ErrNotFound, "download", "load video", "gone", nil),
			retry.CategoryPermanent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retry.Classify(tc.err); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestClassifyByMessage(t *testing.T) {
	cases := []struct {
		name     string
		message  string
		expected retry.Category
	}{
		{"timeout text", "request Timed Out after 20s", retry.CategoryTransientNetwork},
		{"rate limit", "HTTP 429: rate limit exceeded", retry.CategoryTransientNetwork},
		{"server error", "server replied 503", retry.CategoryTransientNetwork},
		{"video removed", "This video has been Removed by the uploader", retry.CategoryPermanent},
		{"private video", "video is private", retry.CategoryPermanent},
		{"unsupported url", "Unsupported URL: https://example.org", retry.CategoryPermanent},
		{"disk full", "write /tmp/out.wav: no space left on device", retry.CategoryResourceNotAvailable},
		{"still downloading", "input file is still downloading", retry.CategoryResourceNotAvailable},
		{"no match", "segmentation produced zero units", retry.CategoryUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retry.Classify(errors.New(tc.message)); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestTypeTierWinsOverMessageTier(t *testing.T) {
	// The message says "not found" but the sentinel marks it transient.
	err := services.Wrap(services.ErrTransient, "download", "fetch", "endpoint not found, retrying", nil)
	if got := retry.Classify(err); got != retry.CategoryTransientNetwork {
		t.Fatalf("expected type tier to win, got %s", got)
	}
}

func TestClassifyNilError(t *testing.T) {
	if got := retry.Classify(nil); got != retry.CategoryUnknown {
		t.Fatalf("expected unknown for nil error, got %s", got)
	}
}
