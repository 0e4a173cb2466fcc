// Package download implements the audio and video fetch stage on top of
// yt-dlp, with a direct ffmpeg path for local files dropped into the watch
// directory.
package download
