package upload

import (
	"fmt"
	"strings"

	"github.com/h2non/filetype"
)

// MaxFileSize caps attachments at 10MB, matching the server limit.
const MaxFileSize = 10 * 1024 * 1024

// Document types allowed alongside any image/* and video/*.
var allowedDocumentTypes = map[string]bool{
	"application/pdf":    true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// ValidationError is a local pre-flight rejection. It never reaches the
// network.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid file %q: %s", e.Filename, e.Reason)
}

// Validate checks size and MIME type before any network call. When the
// declared MIME type is empty, the type is sniffed from the leading
// bytes of the content.
func Validate(filename string, size int64, mimeType string, head []byte) error {
	if size > MaxFileSize {
		return &ValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("file size must be less than %dMB", MaxFileSize/1024/1024),
		}
	}

	if mimeType == "" {
		kind, err := filetype.Match(head)
		if err != nil || kind == filetype.Unknown {
			return &ValidationError{Filename: filename, Reason: "file type could not be determined"}
		}
		mimeType = kind.MIME.Value
	}

	if allowedMimeType(mimeType) {
		return nil
	}

	return &ValidationError{Filename: filename, Reason: "file type not supported"}
}

func allowedMimeType(mimeType string) bool {
	if strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/") {
		return true
	}
	return allowedDocumentTypes[mimeType]
}
