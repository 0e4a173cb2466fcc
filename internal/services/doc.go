// Package services defines shared utilities consumed by the pipeline stage
// strategies and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures with the
//     stage and operation that produced them, so the orchestrator can persist
//     a consistent {stage, reason} failure record.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
