// Package summarize implements the note generation stage against
// OpenAI-compatible and Anthropic model endpoints.
package summarize
