package mediatypes

import (
	"mime"
	"strings"
)

const (
	// MP4 is the content type of every processed output.
	MP4 = "video/mp4"
	// WASM is the content type of the codec engine binary.
	WASM = "application/wasm"
	// JSON is the content type of the codec engine glue descriptor.
	JSON = "application/json"
)

// Essence returns the lowercased media type without parameters.
// "Video/MP4; codecs=avc1" becomes "video/mp4".
func Essence(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// IsVideo reports whether the declared type is a video type. An empty
// declared type is not.
func IsVideo(contentType string) bool {
	return strings.HasPrefix(Essence(contentType), "video/")
}
