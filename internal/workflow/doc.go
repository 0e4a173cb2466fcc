// Package workflow drives the note pipeline: a cache-aware orchestrator that
// walks one task through download, transcription, summarization, and
// screenshot reconciliation, plus a manager that polls the registry and runs
// a bounded pool of those pipelines.
package workflow
