package reveal

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// UnitKind is the granularity of a reveal unit.
type UnitKind string

const (
	UnitWord  UnitKind = "word"
	UnitBlock UnitKind = "block"
)

// DefaultWordThreshold is the word count above which a section reveals block by block.
const DefaultWordThreshold = 150

// Unit is the smallest animatable piece of a section.
type Unit struct {
	SectionID    string   `json:"section_id"`
	Index        int      `json:"index"`
	Kind         UnitKind `json:"kind"`
	Text         string   `json:"text"`
	Tag          string   `json:"tag"`   // enclosing block element
	Block        int      `json:"block"` // ordinal of the enclosing block
	EndsSentence bool     `json:"ends_sentence,omitempty"`
}

// PrepareOptions controls unit decomposition.
type PrepareOptions struct {
	WordThreshold int  // 0 means DefaultWordThreshold
	ForceBlocks   bool // always decompose into blocks
	ForceWords    bool // always decompose into words; wins over ForceBlocks
}

var blockTags = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.P: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true, atom.Img: true, atom.Table: true,
}

var skipTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Button: true,
}

// textRun is one text node together with its nearest block ancestor.
type textRun struct {
	block int
	tag   string
	text  string
}

// Prepare decomposes a rendered HTML fragment into reveal units. It is a pure
// function: the caller maps units back to visual elements.
func Prepare(sectionID, fragment string, opts PrepareOptions) ([]Unit, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("parse section %s: %w", sectionID, err)
	}

	threshold := opts.WordThreshold
	if threshold <= 0 {
		threshold = DefaultWordThreshold
	}

	var units []Unit
	switch {
	case opts.ForceWords:
		units = wordUnits(nodes)
	case opts.ForceBlocks || countWords(nodes) > threshold:
		units = blockUnits(nodes)
	default:
		units = wordUnits(nodes)
	}

	for i := range units {
		units[i].SectionID = sectionID
		units[i].Index = i
	}
	return units, nil
}

// CountWords returns the number of whitespace-separated words in a fragment.
func CountWords(fragment string) int {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return len(strings.Fields(fragment))
	}
	return countWords(nodes)
}

func countWords(nodes []*html.Node) int {
	total := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			total += len(strings.Fields(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return total
}

func blockUnits(nodes []*html.Node) []Unit {
	var units []Unit
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipTags[n.DataAtom] {
				return
			}
			if blockTags[n.DataAtom] {
				units = append(units, Unit{
					Kind:  UnitBlock,
					Tag:   n.Data,
					Text:  textContent(n),
					Block: len(units),
				})
				return
			}
		case html.TextNode:
			// Stray text outside any block still needs to appear.
			if t := strings.TrimSpace(n.Data); t != "" {
				units = append(units, Unit{Kind: UnitBlock, Tag: "#text", Text: t, Block: len(units)})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return units
}

func wordUnits(nodes []*html.Node) []Unit {
	var (
		runs   []textRun
		blocks int
	)
	var walk func(n *html.Node, block int, tag string)
	walk = func(n *html.Node, block int, tag string) {
		switch n.Type {
		case html.ElementNode:
			if skipTags[n.DataAtom] {
				return
			}
			if blockTags[n.DataAtom] {
				block = blocks
				tag = n.Data
				blocks++
			}
		case html.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				return
			}
			if block < 0 {
				block = blocks
				tag = "#text"
				blocks++
			}
			runs = append(runs, textRun{block: block, tag: tag, text: n.Data})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, block, tag)
		}
	}
	for _, n := range nodes {
		walk(n, -1, "")
	}

	var units []Unit
	for start := 0; start < len(runs); {
		end := start + 1
		for end < len(runs) && runs[end].block == runs[start].block {
			end++
		}
		units = append(units, blockWords(runs[start:end])...)
		start = end
	}
	return units
}

// blockWords splits the runs of one block into word units and marks the words
// that close a sentence. The end of a block always closes a sentence.
func blockWords(runs []textRun) []Unit {
	type span struct{ start, end int }
	var (
		text  strings.Builder
		words []Unit
		spans []span
	)
	for _, r := range runs {
		base := text.Len()
		text.WriteString(r.text)
		for _, s := range fieldSpans(r.text) {
			words = append(words, Unit{
				Kind:  UnitWord,
				Text:  r.text[s[0]:s[1]],
				Tag:   r.tag,
				Block: r.block,
			})
			spans = append(spans, span{base + s[0], base + s[1]})
		}
	}

	full := text.String()
	bounds := sentenceBoundaries(full)
	bounds = append(bounds, len(full))

	b := 0
	for i := range words {
		next := len(full)
		if i+1 < len(words) {
			next = spans[i+1].start
		}
		for b < len(bounds) && bounds[b] < spans[i].end {
			b++
		}
		if b < len(bounds) && bounds[b] <= next {
			words[i].EndsSentence = true
		}
	}
	return words
}

// fieldSpans is strings.Fields returning byte offsets.
func fieldSpans(s string) [][2]int {
	var out [][2]int
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(s)})
	}
	return out
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
