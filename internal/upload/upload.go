// Package upload checks image files before they are sent to or accepted by the API.
package upload

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the per-file upload limit.
const MaxImageSize int64 = 10 << 20

// MessageUnsupportedType is shown when an image is not JPEG, PNG or BMP.
const MessageUnsupportedType = "Only JPEG, PNG and BMP images are accepted"

var allowedTypes = map[string]bool{
	"image/jpeg":     true,
	"image/jpg":      true,
	"image/png":      true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
}

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".bmp":  true,
}

// Error describes why a file was rejected
type Error struct {
	Filename string
	Message  string
}

func (e *Error) Error() string {
	if e.Filename == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Message)
}

// Check validates an in-memory image and returns its sniffed content type.
func Check(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &Error{Filename: filename, Message: "file is empty"}
	}
	if int64(len(data)) > MaxImageSize {
		return "", tooLarge(filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && !allowedExtensions[ext] {
		return "", &Error{Filename: filename, Message: MessageUnsupportedType}
	}

	mtype := mimetype.Detect(data)
	contentType := strings.ToLower(mtype.String())
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !allowedTypes[contentType] {
		return "", &Error{Filename: filename, Message: MessageUnsupportedType}
	}
	return contentType, nil
}

// Read drains r up to the size limit and validates the result.
func Read(filename string, r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", filename, err)
	}
	contentType, err := Check(filename, data)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func tooLarge(filename string) error {
	return &Error{
		Filename: filename,
		Message:  fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(MaxImageSize))),
	}
}
