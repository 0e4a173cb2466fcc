// Package logging builds the process-wide slog logger and provides the
// standardized attribute helpers and field names used across components.
package logging
