// Package artifacts is the filesystem store for pipeline outputs. Each task
// owns one directory under the store root holding its audio metadata,
// transcript, note, screenshots, status snapshot, and final result. Writes
// are atomic and unreadable artifacts are surfaced as cache misses.
package artifacts
