// Package retry decides how stage faults are handled: Classify buckets an
// error into one of four failure categories, PolicyFor maps the category to a
// fixed retry policy, and NextDelay computes the backoff before the next
// attempt. Both functions are pure; the orchestrator logs the decisions.
package retry
