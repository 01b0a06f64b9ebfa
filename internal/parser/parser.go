package parser

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/zenview/internal/doctree"
	"golang.org/x/text/unicode/norm"
)

// Dialect recognizes one structural markdown convention. Parse returns false
// when the input does not carry the dialect's required markers.
type Dialect interface {
	Name() string
	Parse(src string) (*doctree.Document, bool)
}

// Parser splits markdown into sections using an ordered list of dialects.
// The first applicable dialect wins; the plain dialect is always applicable.
type Parser struct {
	dialects []Dialect
	log      *slog.Logger
}

// Option configures a Parser.
type Option func(*options)

type options struct {
	bilingual *BilingualConfig
	renderer  Renderer
	log       *slog.Logger
}

// WithBilingual overrides the bilingual template.
func WithBilingual(cfg BilingualConfig) Option {
	return func(o *options) { o.bilingual = &cfg }
}

// WithoutBilingual disables bilingual detection.
func WithoutBilingual() Option {
	return func(o *options) { o.bilingual = nil }
}

// WithLogger sets the logger used for render fallbacks.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New builds a Parser. By default it tries the Diamond Sutra bilingual template
// first and falls back to the plain heading dialect.
func New(opts ...Option) *Parser {
	def := DefaultBilingualConfig()
	o := options{bilingual: &def}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	md := newMarkdown()
	if o.renderer == nil {
		o.renderer = &goldmarkRenderer{md: md}
	}

	p := &Parser{log: o.log}
	if o.bilingual != nil {
		p.dialects = append(p.dialects, &bilingualDialect{cfg: *o.bilingual, render: o.renderer, log: o.log})
	}
	p.dialects = append(p.dialects, &plainDialect{md: md, log: o.log})
	return p
}

var defaultParser = New()

// Parse parses markdown with the default dialect set.
func Parse(markdown string) *doctree.Document {
	return defaultParser.Parse(markdown)
}

// Parse never fails: unrecognized or degenerate input ends up in the plain
// dialect, which at worst yields a single intro section.
func (p *Parser) Parse(markdown string) *doctree.Document {
	src := norm.NFC.String(strings.ReplaceAll(markdown, "\r\n", "\n"))
	for _, d := range p.dialects {
		doc, ok := d.Parse(src)
		if !ok {
			continue
		}
		doc.Dialect = d.Name()
		doc.Hash = ContentHashHex([]byte(markdown))
		for _, s := range doc.Sections {
			s.Anchors = collectAnchors(s.Body.Primary, s.Body.Secondary)
		}
		p.log.Debug("parsed document", "dialect", doc.Dialect, "sections", len(doc.Sections), "toc", len(doc.TOC))
		return doc
	}
	// Unreachable while the plain dialect is registered.
	return &doctree.Document{Dialect: "plain", Sections: []*doctree.Section{introSection()}}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
