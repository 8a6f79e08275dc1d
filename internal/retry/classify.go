package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"youtuberag/internal/services"
)

// Category buckets a stage fault for policy selection.
type Category string

const (
	CategoryTransientNetwork     Category = "transient_network_error"
	CategoryResourceNotAvailable Category = "resource_not_available"
	CategoryPermanent            Category = "permanent_error"
	CategoryUnknown              Category = "unknown_error"
)

// Substring rule tables for the message tier, evaluated in declaration order.
// Error kinds from external tools are often too generic, so message inspection
// is the tie-breaker when no sentinel matched.
var (
	transientKeywords = []string{
		"timeout",
		"timed out",
		"network",
		"503",
		"rate limit",
		"connection reset",
		"connection refused",
		"temporary failure",
	}
	permanentKeywords = []string{
		"not found",
		"deleted",
		"unavailable",
		"private",
		"removed",
		"invalid format",
		"unsupported codec",
		"unsupported url",
		"invalid url",
	}
	resourceKeywords = []string{
		"disk full",
		"out of disk space",
		"no space left",
		"downloading",
		"not ready",
		"insufficient memory",
		"resource busy",
	}
)

// Classify maps a stage fault to its failure category. The type tier wins
// over the message tier; unmatched faults are unknown.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	if category, ok := classifyByType(err); ok {
		return category
	}
	if category, ok := classifyByMessage(err.Error()); ok {
		return category
	}
	return CategoryUnknown
}

func classifyByType(err error) (Category, bool) {
	switch {
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTransientNetwork, true
	case errors.Is(err, services.ErrTransient):
		return CategoryTransientNetwork, true
	case errors.Is(err, services.ErrResourceBusy):
		return CategoryResourceNotAvailable, true
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrNotFound):
		return CategoryPermanent, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransientNetwork, true
	}
	return "", false
}

func classifyByMessage(message string) (Category, bool) {
	lowered := strings.ToLower(message)
	for _, keyword := range transientKeywords {
		if strings.Contains(lowered, keyword) {
			return CategoryTransientNetwork, true
		}
	}
	for _, keyword := range permanentKeywords {
		if strings.Contains(lowered, keyword) {
			return CategoryPermanent, true
		}
	}
	for _, keyword := range resourceKeywords {
		if strings.Contains(lowered, keyword) {
			return CategoryResourceNotAvailable, true
		}
	}
	return "", false
}
