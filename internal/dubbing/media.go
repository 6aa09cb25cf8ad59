package dubbing

import (
	"path/filepath"
	"sort"
	"strings"
)

// MediaKind distinguishes audio-only from video inputs and outputs.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".flac": {},
	".aac":  {},
	".ogg":  {},
	".m4a":  {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
}

// ClassifyPath returns the media kind implied by the file extension. The
// boolean is false when the extension is not on the allow-list.
func ClassifyPath(path string) (MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
	if _, ok := audioExtensions[ext]; ok {
		return MediaAudio, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return MediaVideo, true
	}
	return "", false
}

// SupportedExtensions lists the accepted input extensions per media kind.
func SupportedExtensions() map[MediaKind][]string {
	return map[MediaKind][]string{
		MediaAudio: sortedKeys(audioExtensions),
		MediaVideo: sortedKeys(videoExtensions),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
