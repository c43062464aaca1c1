// Package relay stages client payloads and forwards them to the external
// prediction, image-hosting and try-on services.
package relay

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrNoFile means the request carried no file to forward.
	ErrNoFile = errors.New("no file uploaded")
	// ErrUnsupportedFile means the file extension is not on the allow-list.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrInvalidModelType means the requested prediction model is unknown.
	ErrInvalidModelType = errors.New("invalid model type")
	// ErrMissingImages means a try-on request lacked the person or garment image.
	ErrMissingImages = errors.New("missing human or garment image")
	// ErrInvalidImage means an image payload could not be decoded.
	ErrInvalidImage = errors.New("invalid image payload")
)

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrUnsupportedFile) ||
		errors.Is(err, ErrInvalidModelType) ||
		errors.Is(err, ErrMissingImages) ||
		errors.Is(err, ErrInvalidImage)
}

// ImageExtensions are accepted by the recommendation relay.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif"}

// allowExtension reports whether filename ends in one of allowed (case-insensitive).
func allowExtension(filename string, allowed []string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext == "" {
		return "", false
	}
	for _, a := range allowed {
		if ext == a {
			return ext, true
		}
	}
	return ext, false
}
