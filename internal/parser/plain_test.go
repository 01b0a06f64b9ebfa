package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/zenview/internal/doctree"
)

func TestParse_HeadingIDStability(t *testing.T) {
	doc := Parse("# A\n## B\n## C\n# D\n## E")

	if doc.Dialect != "plain" {
		t.Fatalf("expected plain dialect, got %q", doc.Dialect)
	}

	want := []string{"h1-1", "h2-1-1", "h2-1-2", "h1-2", "h2-2-1"}
	if len(doc.Sections) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(doc.Sections))
	}
	for i, id := range want {
		if doc.Sections[i].ID != id {
			t.Errorf("section %d: expected id %q, got %q", i, id, doc.Sections[i].ID)
		}
		if doc.Sections[i].Kind != doctree.KindHeading {
			t.Errorf("section %d: expected heading kind, got %q", i, doc.Sections[i].Kind)
		}
	}

	if len(doc.TOC) != 2 {
		t.Fatalf("expected 2 top-level TOC items, got %d", len(doc.TOC))
	}
	if len(doc.TOC[0].Children) != 2 {
		t.Errorf("expected first TOC item to have 2 children, got %d", len(doc.TOC[0].Children))
	}
	if len(doc.TOC[1].Children) != 1 {
		t.Errorf("expected second TOC item to have 1 child, got %d", len(doc.TOC[1].Children))
	}
}

func TestParse_HeadingIDsIgnoreTitleText(t *testing.T) {
	doc := Parse("# Same\n# Same\n## Ünïcødé & <stuff>\n### Deep")

	want := []string{"h1-1", "h1-2", "h2-2-1", "h3-2-1-1"}
	for i, id := range want {
		if doc.Sections[i].ID != id {
			t.Errorf("section %d: expected id %q, got %q", i, id, doc.Sections[i].ID)
		}
	}
	if !strings.Contains(doc.Sections[0].Body.Primary, `id="h1-1"`) {
		t.Errorf("expected rendered heading to carry its id, got %q", doc.Sections[0].Body.Primary)
	}
}

func TestParse_ContentSections(t *testing.T) {
	input := `Leading words before any heading.

# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

#### Minor heading

Still A1.
`
	doc := Parse(input)

	ids := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		ids = append(ids, s.ID)
	}
	want := []string{"intro", "h1-1", "h1-1-content", "h2-1-1", "h2-1-1-content", "h3-1-1-1", "h3-1-1-1-content"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("expected ids %v, got %v", want, ids)
	}

	intro := doc.Sections[0]
	if intro.Kind != doctree.KindContent || intro.Level != 0 || intro.Title != "Introduction" {
		t.Errorf("unexpected intro section: %+v", intro)
	}
	if !strings.Contains(intro.Body.Primary, "Leading words") {
		t.Errorf("expected intro to absorb leading text, got %q", intro.Body.Primary)
	}

	last := doc.Sections[len(doc.Sections)-1]
	if !strings.Contains(last.Body.Primary, "<h4>Minor heading</h4>") {
		t.Errorf("expected H4 to stay inside the content section, got %q", last.Body.Primary)
	}
	if !strings.Contains(last.Body.Primary, "Still A1.") {
		t.Errorf("expected trailing paragraph in content section, got %q", last.Body.Primary)
	}

	sub := doc.TOC[0].Children[0].Children
	if len(sub) != 1 || sub[0].ID != "h3-1-1-1" {
		t.Errorf("expected H3 nested under H2 in TOC, got %+v", sub)
	}
}

func TestParse_NoHeadings(t *testing.T) {
	doc := Parse("Just some plain text.\n\nAnother paragraph here.")

	if len(doc.Sections) != 1 {
		t.Fatalf("expected 1 section for headingless markdown, got %d", len(doc.Sections))
	}
	if doc.Sections[0].ID != "intro" {
		t.Errorf("expected intro section, got %q", doc.Sections[0].ID)
	}
	if len(doc.TOC) != 0 {
		t.Errorf("expected empty TOC, got %d items", len(doc.TOC))
	}
}

func TestParse_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\n  "} {
		doc := Parse(input)
		if len(doc.Sections) != 1 {
			t.Fatalf("input %q: expected 1 section, got %d", input, len(doc.Sections))
		}
		s := doc.Sections[0]
		if s.ID != "intro" || s.Body.Primary != "" {
			t.Errorf("input %q: expected empty intro, got %+v", input, s)
		}
		if doc.TOC == nil || len(doc.TOC) != 0 {
			t.Errorf("input %q: expected empty non-nil TOC, got %v", input, doc.TOC)
		}
	}
}

func TestParse_OrphanSubheadingStaysInTOC(t *testing.T) {
	doc := Parse("## Orphan\n\ntext\n\n# Root\n### Skips a level")

	if len(doc.TOC) != 2 {
		t.Fatalf("expected orphan H2 and H1 at TOC root, got %d items", len(doc.TOC))
	}
	if doc.TOC[0].ID != "h2-0-1" {
		t.Errorf("expected orphan id %q, got %q", "h2-0-1", doc.TOC[0].ID)
	}
	if len(doc.TOC[1].Children) != 1 || doc.TOC[1].Children[0].ID != "h3-1-0-1" {
		t.Errorf("expected H3 nested directly under H1, got %+v", doc.TOC[1].Children)
	}
}

func TestParse_RawHTMLIsEscaped(t *testing.T) {
	doc := Parse("# Title\n\n<script>alert(1)</script>\n\nSafe text.")

	for _, s := range doc.Sections {
		if strings.Contains(s.Body.Primary, "<script>") {
			t.Errorf("section %s: raw script tag leaked into body: %q", s.ID, s.Body.Primary)
		}
	}
}

func TestParse_ErrorPlaceholder(t *testing.T) {
	doc := Parse("# Error\n\nFailed to load: data/missing.md\n\nHTTP 404")

	if len(doc.Sections) != 2 {
		t.Fatalf("expected heading + content, got %d sections", len(doc.Sections))
	}
	if doc.Sections[0].Title != "Error" {
		t.Errorf("expected title %q, got %q", "Error", doc.Sections[0].Title)
	}
}

func TestParse_TOCMatchesSectionOrder(t *testing.T) {
	doc := Parse("# One\ntext\n# Two\n## Two A\n# Three")

	var top []string
	for _, item := range doc.TOC {
		top = append(top, item.ID)
	}
	var sections []string
	for _, s := range doc.Sections {
		if s.Kind == doctree.KindHeading && s.Level == 1 {
			sections = append(sections, s.ID)
		}
	}
	if strings.Join(top, ",") != strings.Join(sections, ",") {
		t.Errorf("expected TOC roots %v to match H1 order %v", top, sections)
	}
}

func TestParse_AnchorsAndHash(t *testing.T) {
	doc := Parse("# Title\n\nBody.")

	if got := doc.Sections[0].Anchors; len(got) != 1 || got[0] != "h1-1" {
		t.Errorf("expected anchors [h1-1], got %v", got)
	}
	if len(doc.Hash) != 64 {
		t.Errorf("expected sha256 hex hash, got %q", doc.Hash)
	}
	if Parse("# Title\n\nBody.").Hash != doc.Hash {
		t.Error("expected identical hashes for identical input")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h := ContentHashHex([]byte{}); h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}
