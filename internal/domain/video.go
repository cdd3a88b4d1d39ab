package domain

import "regexp"

// DefaultVideoId seeds freshly created rooms when no other default is configured.
const DefaultVideoId = "dQw4w9WgXcQ"

var (
	videoIdRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	watchURLRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/(?:[^/\n\s]+/\S+/|(?:v|e(?:mbed)?)/|\S*?[?&]v=)|youtu\.be/)([A-Za-z0-9_-]{11})`)
)

// ValidVideoId reports whether id is a well-formed 11-character video id.
func ValidVideoId(id string) bool {
	return videoIdRe.MatchString(id)
}

// ExtractVideoId pulls a video id out of a watch/share/embed URL, or accepts
// a bare id as-is.
func ExtractVideoId(urlOrId string) (string, bool) {
	if m := watchURLRe.FindStringSubmatch(urlOrId); m != nil {
		return m[1], true
	}

	if ValidVideoId(urlOrId) {
		return urlOrId, true
	}

	return "", false
}
