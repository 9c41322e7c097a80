package mediatypes

import (
	"path/filepath"
	"strings"
)

// VideoExtensions maps file extensions to whether they are candidate video
// containers.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".ts":   true,
}

// TargetContainer is the extension every encoded file gets.
const TargetContainer = ".mkv"

// targetMarker appears in codec names, encoder tags and filenames of files
// that are already HEVC.
const targetMarker = "265"

// IsVideo reports whether path has a known video extension.
func IsVideo(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsTargetCodec reports whether a probed codec name or encoder tag
// identifies HEVC ("hevc", "h265", "x265 - H.265/HEVC codec ...").
func IsTargetCodec(codec string) bool {
	c := strings.ToLower(codec)
	return strings.Contains(c, targetMarker) || strings.Contains(c, "hevc")
}

// HasTargetMarker reports whether the file name says it is already HEVC.
func HasTargetMarker(path string) bool {
	return strings.Contains(filepath.Base(path), targetMarker)
}
