package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/annobatch/internal/filelock"
	"github.com/harrison/annobatch/internal/models"
)

const htmlHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.2em 0.6em; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
`

// RenderHTML converts a Markdown document to a standalone HTML page.
func RenderHTML(title string, markdown []byte) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var b bytes.Buffer
	fmt.Fprintf(&b, htmlHead, html.EscapeString(title))
	if err := md.Convert(markdown, &b); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

// WriteCoverage writes the Markdown and/or HTML coverage report. Empty paths
// are skipped.
func WriteCoverage(r *models.MergedReport, markdownPath, htmlPath string) error {
	if markdownPath == "" && htmlPath == "" {
		return nil
	}
	doc := Markdown(r)
	if markdownPath != "" {
		if err := filelock.AtomicWrite(markdownPath, doc); err != nil {
			return fmt.Errorf("write markdown report: %w", err)
		}
	}
	if htmlPath != "" {
		title := "Coverage report"
		if r.Stage != "" {
			title += ": " + r.Stage
		}
		page, err := RenderHTML(title, doc)
		if err != nil {
			return err
		}
		if err := filelock.AtomicWrite(htmlPath, page); err != nil {
			return fmt.Errorf("write html report: %w", err)
		}
	}
	return nil
}
