// Package queue owns the persisted job state machine: the Job record, its
// stage/status lifecycle, the weighted progress model, the accumulating
// metadata contract, and the SQLite-backed store.
//
// Mutation goes through the Job helpers (BeginStage, CompleteStage,
// MarkFailed, ScheduleRetry, MergeMetadata) so two invariants hold
// structurally: a stage that reached 100% never loses its mark when a later
// stage fails, and metadata keys written by earlier stages are never deleted.
// Overall progress is recomputed on every stage-progress mutation.
package queue
