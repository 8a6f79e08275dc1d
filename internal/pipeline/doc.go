// Package pipeline contains the stage orchestration protocol: per-stage
// handlers, the orchestrator that runs one stage invocation end to end
// (load, execute, persist, chain or fault-route), and the polling workflow
// manager that schedules ready jobs with one in-flight execution per job id.
package pipeline
