package notes

// AudioMeta is the output of the download stage. Immutable once written.
type AudioMeta struct {
	// AudioPath is the local path of the extracted audio file.
	AudioPath string `json:"audio_path"`
	// VideoPath is the local path of the full video, populated lazily when
	// screenshot extraction needs frames. Empty until then.
	VideoPath string `json:"video_path,omitempty"`
	Title     string `json:"title"`
	// Duration is the source length in seconds.
	Duration float64 `json:"duration"`
	VideoID  string  `json:"video_id"`
	Platform string  `json:"platform"`
	Uploader string  `json:"uploader,omitempty"`
	CoverURL string  `json:"cover_url,omitempty"`
	// SourceURL is the original submission URL.
	SourceURL string `json:"source_url"`
}
