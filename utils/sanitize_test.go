package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := RenderMarkdown("# Today\n\nfelt **good** <script>alert(1)</script>")

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>good</strong>")
	assert.False(t, strings.Contains(out, "<script>"))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Ada", StripTags("  <b>Ada</b> "))
	assert.Equal(t, "Today's list & more", StripTags("Today's <i>list</i> & more"))
}
