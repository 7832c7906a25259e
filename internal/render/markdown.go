// Package render turns cover-letter markdown into a printable preview page and PDF.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown converts markdown to HTML. Raw HTML in the source is escaped.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Single newlines are kept as line breaks, like the pre-wrap preview.
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// HTML renders the markdown body only.
func (m *Markdown) HTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Cover Letter</title>
<style>
  @page { size: {{.WidthMM}}mm {{.HeightMM}}mm; margin: {{.MarginMM}}mm; }
  html, body { margin: 0; padding: 0; background: #fff; }
  .page {
    width: {{.WidthMM}}mm;
    min-height: {{.HeightMM}}mm;
    box-sizing: border-box;
    margin: 0 auto;
    padding: 24px;
    white-space: pre-wrap;
    word-break: break-word;
    font-family: Arial, sans-serif;
    font-size: 12pt;
    line-height: 1.5;
  }
  .page p, .page h1, .page h2, .page h3 { margin: 0 0 0.6em; white-space: normal; }
</style>
</head>
<body><div class="page">{{.Body}}</div></body>
</html>
`))

type pageData struct {
	WidthMM  float64
	HeightMM float64
	MarginMM float64
	Body     template.HTML
}

// Page renders a standalone preview document sized to size.
func (m *Markdown) Page(source string, size PageSize, marginMM float64) (string, error) {
	body, err := m.HTML(source)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		WidthMM:  size.WidthMM,
		HeightMM: size.HeightMM,
		MarginMM: marginMM,
		// goldmark escapes raw HTML, so the body is safe to embed.
		Body: template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

// Preview renders the A4 preview page with no margin.
func (m *Markdown) Preview(source string) (string, error) {
	return m.Page(source, A4, 0)
}
