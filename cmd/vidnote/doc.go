// Command vidnote is the CLI client for the vidnote daemon: it submits
// video URLs, polls task state, and prints finished notes.
package main
