// Command vidnoted runs the vidnote daemon: the task queue workers, the
// drop-directory watcher, and the HTTP API.
package main
