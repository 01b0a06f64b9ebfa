package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/zenview/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	introID    = "intro"
	introTitle = "Introduction"
)

// plainDialect splits on H1-H3 headings. Each heading is its own section and
// the blocks between headings become content sections.
type plainDialect struct {
	md  goldmark.Markdown
	log *slog.Logger
}

func (p *plainDialect) Name() string { return "plain" }

// pendingSection keeps the AST nodes of a section until it is rendered.
type pendingSection struct {
	section *doctree.Section
	nodes   []ast.Node
}

func (p *plainDialect) Parse(src string) (*doctree.Document, bool) {
	source := []byte(src)
	root := p.md.Parser().Parse(text.NewReader(source))

	var (
		pending  []*pendingSection
		toc      []*doctree.TOCItem
		counters [3]int
		// Nearest open TOC item per level; reset when a shallower heading appears.
		open [3]*doctree.TOCItem
	)

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > 3 {
			last := len(pending) - 1
			if last < 0 || pending[last].section.Kind != doctree.KindContent {
				pending = append(pending, &pendingSection{section: contentSectionAfter(pending)})
				last++
			}
			pending[last].nodes = append(pending[last].nodes, n)
			continue
		}

		level := h.Level
		counters[level-1]++
		for i := level; i < len(counters); i++ {
			counters[i] = 0
		}
		id := headingID(level, counters)
		h.SetAttributeString("id", []byte(id))
		title := strings.TrimSpace(string(h.Text(source)))

		pending = append(pending, &pendingSection{
			section: &doctree.Section{
				ID:    id,
				Kind:  doctree.KindHeading,
				Level: level,
				Title: title,
			},
			nodes: []ast.Node{n},
		})

		item := &doctree.TOCItem{ID: id, Title: title, Level: level, Children: []*doctree.TOCItem{}}
		var parent *doctree.TOCItem
		for i := level - 2; i >= 0; i-- {
			if open[i] != nil {
				parent = open[i]
				break
			}
		}
		if parent != nil {
			parent.Children = append(parent.Children, item)
		} else {
			toc = append(toc, item)
		}
		open[level-1] = item
		for i := level; i < len(open); i++ {
			open[i] = nil
		}
	}

	doc := &doctree.Document{TOC: toc}
	if doc.TOC == nil {
		doc.TOC = []*doctree.TOCItem{}
	}
	for _, ps := range pending {
		ps.section.Body.Primary = p.render(source, ps.nodes)
		doc.Sections = append(doc.Sections, ps.section)
	}
	if len(doc.Sections) == 0 {
		doc.Sections = []*doctree.Section{introSection()}
	}
	return doc, true
}

func (p *plainDialect) render(source []byte, nodes []ast.Node) string {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := p.md.Renderer().Render(&buf, source, n); err != nil {
			p.log.Warn("render block failed", "kind", n.Kind().String(), "error", err)
			buf.WriteString(escapedFallback(string(nodeSource(n, source))))
		}
	}
	return buf.String()
}

// headingID encodes the running per-level counters, e.g. h2-1-2 for the second
// H2 under the first H1.
func headingID(level int, counters [3]int) string {
	parts := make([]string, 0, level+1)
	parts = append(parts, fmt.Sprintf("h%d", level))
	for i := 0; i < level; i++ {
		parts = append(parts, fmt.Sprint(counters[i]))
	}
	return strings.Join(parts, "-")
}

func contentSectionAfter(pending []*pendingSection) *doctree.Section {
	if len(pending) == 0 {
		return introSection()
	}
	return &doctree.Section{
		ID:   pending[len(pending)-1].section.ID + "-content",
		Kind: doctree.KindContent,
	}
}

func introSection() *doctree.Section {
	return &doctree.Section{ID: introID, Kind: doctree.KindContent, Title: introTitle}
}

// nodeSource returns the raw lines of a block node.
func nodeSource(n ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.Bytes()
}
