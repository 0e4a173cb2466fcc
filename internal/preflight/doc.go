// Package preflight runs startup checks for directories, external binaries,
// and summarizer credentials before the daemon accepts work.
package preflight
