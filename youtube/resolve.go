package youtube

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidReference = errors.New("invalid YouTube video reference")

// videoIDPattern accepts watch?v=, youtu.be/, embed/, v/, e/, shorts/, live/
// and youtube.com/<a>/<b>/ shapes. The id must be exactly 11 characters, so a
// longer run of id characters is rejected rather than truncated.
var videoIDPattern = regexp.MustCompile(
	`(?:youtube\.com/(?:[^/\s]+/.+/|(?:v|e(?:mbed)?|shorts|live)/|.*[?&]v=)|youtu\.be/)([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`,
)

// ExtractVideoID returns the canonical 11 character id named by rawURL.
func ExtractVideoID(rawURL string) (string, error) {
	match := videoIDPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil {
		return "", ErrInvalidReference
	}
	return match[1], nil
}

// WatchURL is the canonical page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
