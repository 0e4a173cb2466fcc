// Package screenshot extracts representative video frames and reconciles
// them into the rendered markdown note.
package screenshot
