package utils

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the rule's size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedFileType is returned when extension or MIME type is not allowed.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// UploadRule constrains an upload. Types maps a lowercase extension to the
// MIME types accepted for it; both must match.
type UploadRule struct {
	MaxBytes int64
	Types    map[string][]string
}

// AudioUploadRule accepts voice recordings up to 10MB.
var AudioUploadRule = UploadRule{
	MaxBytes: 10 << 20,
	Types: map[string][]string{
		".webm": {"audio/webm", "video/webm"},
		".mp3":  {"audio/mpeg", "audio/mp3"},
		".wav":  {"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"},
		".ogg":  {"audio/ogg", "application/ogg"},
	},
}

// Check validates size, extension and declared MIME type of header.
func (r UploadRule) Check(header *multipart.FileHeader) (string, error) {
	if r.MaxBytes > 0 && header.Size > r.MaxBytes {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	accepted, ok := r.Types[ext]
	if !ok {
		return "", ErrUnsupportedFileType
	}
	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		return "", ErrUnsupportedFileType
	}
	for _, m := range accepted {
		if strings.EqualFold(m, mediaType) {
			return ext, nil
		}
	}
	return "", ErrUnsupportedFileType
}

// SaveUpload validates header against rule and stores it under dir as
// "<prefix>-<uuid><ext>". It returns the stored path.
func SaveUpload(header *multipart.FileHeader, dir, prefix string, rule UploadRule) (string, error) {
	ext, err := rule.Check(header)
	if err != nil {
		return "", err
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dstPath := filepath.Join(dir, fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext))
	out, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	// The declared size can lie; enforce the limit on the bytes actually read.
	lr := &io.LimitedReader{R: src, N: rule.MaxBytes + 1}
	written, err := io.Copy(out, lr)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if rule.MaxBytes > 0 && written > rule.MaxBytes {
		_ = os.Remove(dstPath)
		return "", ErrFileTooLarge
	}
	return dstPath, nil
}
