package source

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TextConverter turns plain text into markdown paragraphs under a title
// taken from the filename.
type TextConverter struct{}

func (c *TextConverter) Convert(r io.Reader, filename string) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}

	var b strings.Builder
	writeHeading(&b, 1, titleFromFilename(filename))
	for _, para := range paragraphs {
		writeParagraph(&b, para)
	}
	return b.String(), nil
}
