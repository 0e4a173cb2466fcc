// Package queue persists the task registry in SQLite. The registry is an
// index for fast polling and listing; the durable source of truth is the
// per-task status.json snapshot in the artifact store, from which the
// registry is rebuilt on startup.
package queue
