package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownHTML(t *testing.T) {
	out, err := NewMarkdown().HTML("# Dear Hiring Manager\n\nI am **excited**\nto apply.")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Dear Hiring Manager</h1>")
	assert.Contains(t, out, "<strong>excited</strong>")
	assert.Contains(t, out, "<br>")
}

func TestMarkdownEscapesRawHTML(t *testing.T) {
	out, err := NewMarkdown().HTML("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestPreviewPageIsA4(t *testing.T) {
	page, err := NewMarkdown().Preview("Regards,\nAda")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "width: 210mm")
	assert.Contains(t, page, "min-height: 297mm")
	assert.Contains(t, page, "Regards,<br>")
}
