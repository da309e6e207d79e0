// Package attachments uploads exam result files to blob storage and returns
// the {url, name} pairs stored in the exam attachments column.
package attachments

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/records"
)

var (
	// ErrInvalidFile is returned for files with no usable name or content.
	ErrInvalidFile = errors.New("invalid attachment file")

	// ErrUploadFailed wraps every storage-side failure.
	ErrUploadFailed = errors.New("attachment upload failed")
)

// Uploader stores one file and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (records.Attachment, error)
}

// PublicID derives the storage key from a file name: the base name without a
// trailing ".pdf". Uploading the same file name twice overwrites the first
// upload.
func PublicID(filename string) string {
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(filename, `\`, "/")))
	if name == "." || name == "/" {
		return ""
	}
	if ext := path.Ext(name); strings.EqualFold(ext, ".pdf") {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.TrimSpace(name)
}

// DisplayName is the name shown next to the attachment link.
func DisplayName(filename string) string {
	return strings.TrimSpace(path.Base(strings.ReplaceAll(filename, `\`, "/")))
}
