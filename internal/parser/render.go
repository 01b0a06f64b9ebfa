package parser

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts a markdown fragment into safe HTML.
type Renderer interface {
	Render(markdown string) (string, error)
}

// WithRenderer replaces the goldmark renderer used for bilingual bodies.
func WithRenderer(r Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// newMarkdown returns the goldmark instance shared by both dialects. Raw HTML
// stays escaped (goldmark's default), which is what makes section payloads safe
// to inject.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

type goldmarkRenderer struct {
	md goldmark.Markdown
}

func (r *goldmarkRenderer) Render(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// escapedFallback is used when rendering fails; the text is still shown.
func escapedFallback(markdown string) string {
	return "<pre>" + html.EscapeString(markdown) + "</pre>\n"
}
