// Package daemon hosts the long-running vidnote process: the worker pool,
// the drop-directory watcher, the HTTP API, and the single-instance lock.
package daemon
