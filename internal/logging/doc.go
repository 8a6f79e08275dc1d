// Package logging wires log/slog with console and JSON handlers, standardized
// field keys, and context-derived attributes used across the pipeline.
package logging
