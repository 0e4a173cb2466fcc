// Package transcribe implements the speech-to-text stage with a local
// whisper.cpp CLI strategy and an OpenAI-compatible cloud strategy, both
// bounded by a shared concurrency pool.
package transcribe
