package utils

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartHeader(t *testing.T, filename, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["audio"][0]
}

func TestSaveUploadStoresAllowedAudio(t *testing.T) {
	dir := t.TempDir()
	header := multipartHeader(t, "note.WAV", "audio/wav", []byte("RIFF...."))

	path, err := SaveUpload(header, dir, "3", AudioUploadRule)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, dir))
	assert.True(t, strings.HasSuffix(path, ".wav"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(data))
}

func TestSaveUploadRejectsMismatchedMIME(t *testing.T) {
	header := multipartHeader(t, "note.mp3", "text/plain", []byte("hello"))

	_, err := SaveUpload(header, t.TempDir(), "3", AudioUploadRule)
	assert.True(t, errors.Is(err, ErrUnsupportedFileType))
}

func TestSaveUploadRejectsUnknownExtension(t *testing.T) {
	header := multipartHeader(t, "note.exe", "audio/mpeg", []byte("MZ"))

	_, err := SaveUpload(header, t.TempDir(), "3", AudioUploadRule)
	assert.True(t, errors.Is(err, ErrUnsupportedFileType))
}

func TestSaveUploadRejectsOversizedFile(t *testing.T) {
	rule := UploadRule{MaxBytes: 4, Types: AudioUploadRule.Types}
	header := multipartHeader(t, "note.ogg", "audio/ogg", []byte("0123456789"))
	dir := t.TempDir()

	_, err := SaveUpload(header, dir, "3", rule)
	assert.True(t, errors.Is(err, ErrFileTooLarge))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
