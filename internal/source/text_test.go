package source

import (
	"strings"
	"testing"
)

func TestTextConverter_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	c := &TextConverter{}
	md, err := c.Convert(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "# notes\n\nFirst paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph.\n"
	if md != want {
		t.Errorf("expected %q, got %q", want, md)
	}
}

func TestTextConverter_EmptyInput(t *testing.T) {
	c := &TextConverter{}
	md, err := c.Convert(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md != "# empty\n" {
		t.Errorf("expected only the title, got %q", md)
	}
}

func TestTextConverter_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two."
	c := &TextConverter{}
	md, err := c.Convert(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(md, "\n\n\n") {
		t.Errorf("expected single blank lines between paragraphs, got %q", md)
	}
}

func TestTextConverter_WhitespaceOnlyLines(t *testing.T) {
	// Lines with only whitespace should be treated as blank.
	input := "Para one.\n   \nPara two."
	c := &TextConverter{}
	md, err := c.Convert(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(md, "Para one.\n\nPara two.") {
		t.Errorf("expected two paragraphs, got %q", md)
	}
}

func TestTextConverter_EscapesHashLines(t *testing.T) {
	c := &TextConverter{}
	md, err := c.Convert(strings.NewReader("# not a heading"), "hash.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(md, `\# not a heading`) {
		t.Errorf("expected escaped hash, got %q", md)
	}
}
