package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Converter turns the raw bytes of one file format into markdown.
type Converter interface {
	Convert(r io.Reader, filename string) (string, error)
}

// SupportedExtensions lists file extensions that can be loaded.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the converter for a filename.
func ForFile(filename string) (Converter, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return MarkdownConverter{}, nil
	case ".txt":
		return &TextConverter{}, nil
	case ".csv":
		return &CSVConverter{}, nil
	case ".html", ".htm":
		return &HTMLConverter{}, nil
	case ".pdf":
		return &PDFConverter{}, nil
	case ".docx":
		return &DOCXConverter{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// MarkdownConverter passes markdown through unchanged.
type MarkdownConverter struct{}

func (MarkdownConverter) Convert(r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read markdown: %w", err)
	}
	return string(b), nil
}

// Placeholder is the markdown shown in place of a document that failed to load.
func Placeholder(docPath string, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("# Error\n\nFailed to load: %s\n\n%s\n", docPath, msg)
}

// Loader resolves document paths to markdown. Relative paths are read from
// Root; http and https URLs are fetched.
type Loader struct {
	root        string
	fetcher     *Fetcher
	pdfFallback bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRoot sets the directory relative paths are resolved against.
func WithRoot(dir string) LoaderOption {
	return func(l *Loader) { l.root = dir }
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f *Fetcher) LoaderOption {
	return func(l *Loader) { l.fetcher = f }
}

// WithPDFFallback lets PDF extraction fall back to the pdftotext binary.
func WithPDFFallback(on bool) LoaderOption {
	return func(l *Loader) { l.pdfFallback = on }
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{fetcher: NewFetcher(30 * time.Second)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var defaultLoader = NewLoader()

// Load reads the document at docPath with the default loader.
func Load(ctx context.Context, docPath string) (string, error) {
	return defaultLoader.Load(ctx, docPath)
}

// Load returns the document at docPath as markdown. On failure it returns the
// error placeholder document together with the error, so callers can always
// render something.
func (l *Loader) Load(ctx context.Context, docPath string) (string, error) {
	md, err := l.load(ctx, docPath)
	if err != nil {
		return Placeholder(docPath, err), err
	}
	return md, nil
}

func (l *Loader) load(ctx context.Context, docPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if docPath == "" {
		return "", errors.New("empty document path")
	}

	var (
		data []byte
		name string
		conv Converter
		err  error
	)
	if isURL(docPath) {
		data, name, err = l.fetcher.Fetch(ctx, docPath)
		if err != nil {
			return "", err
		}
		conv, err = ForFile(name)
		if err != nil {
			// Extension-less URLs are treated as markdown.
			conv = MarkdownConverter{}
		}
	} else {
		name = docPath
		conv, err = ForFile(name)
		if err != nil {
			return "", err
		}
		full := docPath
		if l.root != "" && !filepath.IsAbs(docPath) {
			full = filepath.Join(l.root, docPath)
		}
		data, err = os.ReadFile(full)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", docPath, err)
		}
	}

	if pc, ok := conv.(*PDFConverter); ok {
		pc.FallbackPdftotext = l.pdfFallback
	}
	md, err := conv.Convert(bytes.NewReader(data), name)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", name, err)
	}
	return md, nil
}

func isURL(p string) bool {
	u, err := url.Parse(p)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// titleFromFilename strips directories and the extension.
func titleFromFilename(filename string) string {
	base := path.Base(filepath.ToSlash(filename))
	return strings.TrimSuffix(base, path.Ext(base))
}

// writeHeading appends an ATX heading.
func writeHeading(b *strings.Builder, level int, text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("#", level))
	b.WriteString(" ")
	b.WriteString(text)
	b.WriteString("\n")
}

// writeParagraph appends a paragraph. Lines that would read as headings are escaped.
func writeParagraph(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("\n")
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			b.WriteString(`\`)
			line = strings.TrimSpace(line)
		}
		b.WriteString(line)
	}
	b.WriteString("\n")
}
