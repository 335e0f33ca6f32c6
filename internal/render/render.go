// Package render converts raw page Markdown into HTML that is safe to send
// to a browser. Markdown() and Sanitize() are two separate pure steps:
// sanitization has to run after parsing, since the parser itself can emit
// raw HTML embedded in the Markdown source.
package render

import (
	"bytes"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// engine is stateless and safe for concurrent use across requests
var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		highlighting.NewHighlighting(
			// classes only, no inline styles and no script execution;
			// styling is left to the frontend css
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		),
	),
	goldmark.WithRendererOptions(
		// let author-embedded HTML through here, Sanitize is the
		// single enforcement point for what reaches the browser
		html.WithUnsafe(),
	),
)

// Markdown converts raw Markdown to HTML. The output is NOT safe to serve,
// it must go through Sanitize first.
func Markdown(raw string) (string, error) {
	var buf bytes.Buffer
	if err := engine.Convert([]byte(raw), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return buf.String(), nil
}

// Render is the only code path producing page content sent to a browser.
func Render(raw string) (string, error) {
	converted, err := Markdown(raw)
	if err != nil {
		return "", err
	}
	return Sanitize(converted), nil
}
