package mime

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extByMime maps detected image MIME types to a canonical file extension used
// when building storage keys.
var extByMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/avif": ".avif",
	"image/heic": ".heic",
}

// DetectMimeType detects the MIME type from raw content.
func DetectMimeType(content []byte) string {
	return mimetype.Detect(content).String()
}

// IsImage reports whether the MIME type denotes an image payload.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

// ExtFor returns the canonical extension for an image MIME type, ".bin" when
// unknown.
func ExtFor(mime string) string {
	if ext, ok := extByMime[mime]; ok {
		return ext
	}
	return ".bin"
}
