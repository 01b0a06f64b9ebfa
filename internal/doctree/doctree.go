package doctree

// SectionKind classifies a parsed section.
type SectionKind string

const (
	KindPreamble SectionKind = "preamble"
	KindHeading  SectionKind = "heading"
	KindContent  SectionKind = "content"
	KindChapter  SectionKind = "chapter"
)

// Document is the parsed form of one markdown source.
type Document struct {
	Dialect  string     `json:"dialect"` // "plain" or "bilingual"
	Hash     string     `json:"hash"`    // SHA-256 of the source text
	Sections []*Section `json:"sections"`
	TOC      []*TOCItem `json:"toc"`
}

// Section is a contiguous, independently revealable unit of content.
// Sections are immutable once the parser returns them.
type Section struct {
	ID      string      `json:"id"`
	Kind    SectionKind `json:"kind"`
	Level   int         `json:"level"` // 1-3 for headings/chapters, 0 for content runs
	Title   string      `json:"title"`
	Body    Body        `json:"body"`
	Anchors []string    `json:"anchors,omitempty"` // element ids inside Body
}

// Body holds rendered HTML. Secondary is only set for bilingual chapters and is
// shown on explicit toggle.
type Body struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	Bilingual bool   `json:"bilingual,omitempty"`
}

// TOCItem is a node of the navigation tree.
type TOCItem struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Level    int        `json:"level"`
	Children []*TOCItem `json:"children"`
}

// Index returns the position of the section with the given id, or -1.
func (d *Document) Index(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Section returns the section with the given id, or nil.
func (d *Document) Section(id string) *Section {
	if i := d.Index(id); i >= 0 {
		return d.Sections[i]
	}
	return nil
}

// Walk visits TOC items in pre-order.
func Walk(items []*TOCItem, fn func(item *TOCItem)) {
	for _, it := range items {
		fn(it)
		Walk(it.Children, fn)
	}
}
