// Package config loads, normalizes, and validates the TOML configuration for
// the vidnote daemon and CLI. The Config struct is constructed once at process
// start and passed by reference everywhere; it is never mutated afterward.
package config
