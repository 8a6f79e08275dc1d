package retry

import (
	"math"
	"time"
)

// BackoffKind selects the delay formula between attempts.
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
	BackoffNone        BackoffKind = "none"
)

// Policy describes how faults of one category are retried.
type Policy struct {
	MaxRetries       int
	Backoff          BackoffKind
	InitialDelay     time.Duration
	SendToDeadLetter bool
	Description      string
}

// The policy table is fixed; the engine is stateless and re-derives every
// decision from the category.
var policies = map[Category]Policy{
	CategoryTransientNetwork: {
		MaxRetries:       5,
		Backoff:          BackoffExponential,
		InitialDelay:     10 * time.Second,
		SendToDeadLetter: true,
		Description:      "network blips retry aggressively with exponential backoff",
	},
	CategoryResourceNotAvailable: {
		MaxRetries:       3,
		Backoff:          BackoffLinear,
		InitialDelay:     2 * time.Minute,
		SendToDeadLetter: true,
		Description:      "missing local resources retry slowly while they materialize",
	},
	CategoryPermanent: {
		MaxRetries:       0,
		Backoff:          BackoffNone,
		SendToDeadLetter: true,
		Description:      "permanent faults dead-letter immediately, no retry attempted",
	},
	CategoryUnknown: {
		MaxRetries:       2,
		Backoff:          BackoffExponential,
		InitialDelay:     30 * time.Second,
		SendToDeadLetter: true,
		Description:      "unrecognized faults get a cautious retry budget",
	},
}

// PolicyFor returns the retry policy for a failure category. Unrecognized
// categories get the unknown policy.
func PolicyFor(category Category) Policy {
	if policy, ok := policies[category]; ok {
		return policy
	}
	return policies[CategoryUnknown]
}

// NextDelay computes the delay before the given retry attempt. Exponential
// backoff doubles per attempt (negative attempts simply halve); linear grows
// by the initial delay each attempt. No cap is applied: callers dead-letter
// via MaxRetries before delays grow unreasonable.
func (p Policy) NextDelay(attempt int) time.Duration {
	switch p.Backoff {
	case BackoffExponential:
		return time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt)))
	case BackoffLinear:
		return p.InitialDelay * time.Duration(attempt+1)
	default:
		return 0
	}
}

// ShouldDeadLetter reports whether a job with the given retry count has
// exhausted this policy's budget.
func (p Policy) ShouldDeadLetter(retryCount int) bool {
	return retryCount >= p.MaxRetries
}
