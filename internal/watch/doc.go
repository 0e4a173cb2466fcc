// Package watch ingests local media files dropped into a watched directory.
package watch
