package utils

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
	markdown  = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes all markup from short plain-text fields such as names.
// The result is plain text, not HTML: entities are decoded again.
func StripTags(input string) string {
	return strings.TrimSpace(html.UnescapeString(stripper.Sanitize(input)))
}

// RenderMarkdown converts markdown to sanitized HTML. Input that fails to
// render is returned escaped.
func RenderMarkdown(input string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return stripper.Sanitize(input)
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes()))
}
