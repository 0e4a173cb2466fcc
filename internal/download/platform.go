package download

import (
	"net/url"
	"os"
	"regexp"
	"strings"
)

// Platform labels recognized video sources.
const (
	PlatformYouTube     = "youtube"
	PlatformBilibili    = "bilibili"
	PlatformDouyin      = "douyin"
	PlatformTikTok      = "tiktok"
	PlatformXiaohongshu = "xiaohongshu"
	PlatformLocal       = "local"
	PlatformUnknown     = "unknown"
)

var platformPatterns = []struct {
	platform string
	domains  []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{PlatformBilibili, []string{"bilibili.com", "b23.tv"}},
	{PlatformDouyin, []string{"douyin.com"}},
	{PlatformTikTok, []string{"tiktok.com"}},
	{PlatformXiaohongshu, []string{"xiaohongshu.com", "xhslink.com"}},
}

var bilibiliIDPattern = regexp.MustCompile(`/(BV\w+)`)

// DetectPlatform maps a video URL to its source platform by hostname.
// Local file paths and file:// URLs map to the local platform.
func DetectPlatform(videoURL string) string {
	if strings.HasPrefix(videoURL, "file://") {
		return PlatformLocal
	}
	parsed, err := url.Parse(videoURL)
	if err != nil || parsed.Host == "" {
		if _, statErr := os.Stat(videoURL); statErr == nil {
			return PlatformLocal
		}
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for _, entry := range platformPatterns {
		for _, domain := range entry.domains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return entry.platform
			}
		}
	}
	return PlatformUnknown
}

// DetectVideoID extracts the platform-native video identifier from the URL
// when the pattern is known. Returns an empty string otherwise.
func DetectVideoID(videoURL string) string {
	parsed, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	switch {
	case strings.Contains(host, "youtube.com"):
		return parsed.Query().Get("v")
	case strings.Contains(host, "youtu.be"):
		return strings.Trim(parsed.Path, "/")
	case strings.Contains(host, "bilibili.com"):
		if match := bilibiliIDPattern.FindStringSubmatch(parsed.Path); match != nil {
			return match[1]
		}
	}
	return ""
}
