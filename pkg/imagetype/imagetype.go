// Package imagetype decides which image formats the shop accepts.
//
// The server upload pipeline and the admin client share these rules, so a
// file the client lets through is not refused by the server for its type.
package imagetype

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffLen is how many leading bytes Detect looks at.
const SniffLen = 512

// Allowed maps accepted MIME types to their canonical extension.
var Allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/avif": ".avif",
}

var extensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".avif": "image/avif",
}

// IsAllowed reports whether mimeType is accepted.
func IsAllowed(mimeType string) bool {
	_, ok := Allowed[normalize(mimeType)]
	return ok
}

// FromFilename returns the MIME type implied by the extension, or "".
func FromFilename(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Extension returns the canonical extension of an accepted type, or "".
func Extension(mimeType string) string {
	return Allowed[normalize(mimeType)]
}

// Detect sniffs the content type of head. AVIF is recognized from its ftyp
// box since http.DetectContentType does not know it.
func Detect(head []byte) string {
	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		brand := string(head[8:12])
		if brand == "avif" || brand == "avis" {
			return "image/avif"
		}
	}
	return normalize(http.DetectContentType(head))
}

// Check validates a file whose declared type is declared and whose first
// bytes are head. It returns the type to store: the sniffed one when it is
// accepted, otherwise an error. The content must be an image.
func Check(declared string, head []byte) (string, error) {
	declared = normalize(declared)
	if declared != "" && declared != "application/octet-stream" && !IsAllowed(declared) {
		return "", fmt.Errorf("file type %s is not allowed", declared)
	}

	sniffed := Detect(head)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", fmt.Errorf("file content is %s, not an image", sniffed)
	}
	if !IsAllowed(sniffed) {
		return "", fmt.Errorf("image type %s is not allowed", sniffed)
	}
	return sniffed, nil
}

// normalize drops parameters ("image/png; charset=x") and lower-cases.
func normalize(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
