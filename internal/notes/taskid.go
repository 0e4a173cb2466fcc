package notes

import (
	"crypto/sha256"
	"encoding/hex"
)

// TaskID derives the deterministic task identifier from the video URL and
// note style. The same submission always maps to the same artifact
// directory, so resubmitting a finished or failed URL resumes from its
// cached stage outputs instead of recomputing.
func TaskID(videoURL string, style Style) string {
	sum := sha256.Sum256([]byte(videoURL + "\n" + string(style)))
	return hex.EncodeToString(sum[:])[:12]
}
