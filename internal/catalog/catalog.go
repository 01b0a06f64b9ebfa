package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v3"

	"github.com/dgallion1/zenview/internal/media"
	"github.com/dgallion1/zenview/internal/navigate"
	"github.com/dgallion1/zenview/internal/reveal"
	"github.com/dgallion1/zenview/internal/source"
)

// Initial modes for the first pass through a document.
const (
	ModeGuided   = "guided"   // sections reveal one after another
	ModeOverview = "overview" // headings appear at once, prose follows
)

// Entry is one document offered to the reader.
type Entry struct {
	Name          string `yaml:"name" json:"name"`
	Path          string `yaml:"path" json:"path"`
	Slug          string `yaml:"slug,omitempty" json:"slug"`
	Bilingual     bool   `yaml:"bilingual,omitempty" json:"bilingual"` // expected layout; the dialect is still detected from content
	DefaultSpeed  string `yaml:"default_speed,omitempty" json:"default_speed,omitempty"`
	TOCRevealMode string `yaml:"toc_reveal_mode,omitempty" json:"toc_reveal_mode,omitempty"`
	InitialMode   string `yaml:"initial_mode,omitempty" json:"initial_mode,omitempty"`
}

// Speed returns the configured default speed, or medium.
func (e Entry) Speed() reveal.Speed {
	if sp, err := reveal.ParseSpeed(e.DefaultSpeed); err == nil {
		return sp
	}
	return reveal.SpeedMedium
}

// Policy returns the configured TOC reveal policy, or the default.
func (e Entry) Policy() navigate.Policy {
	if p, err := navigate.ParsePolicy(e.TOCRevealMode); err == nil {
		return p
	}
	return navigate.DefaultPolicy
}

// Overview reports whether the document opens in overview mode.
func (e Entry) Overview() bool {
	return strings.EqualFold(e.InitialMode, ModeOverview)
}

// Catalog is the list of documents plus media galleries keyed by section id.
type Catalog struct {
	Documents []Entry                  `yaml:"documents" json:"documents"`
	Media     map[string]media.Gallery `yaml:"media,omitempty" json:"media,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog YAML, fills in slugs and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	c.fillSlugs()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) fillSlugs() {
	for i := range c.Documents {
		if c.Documents[i].Slug == "" {
			c.Documents[i].Slug = slug.Make(c.Documents[i].Name)
		}
	}
}

// Validate reports every problem in the catalog at once.
func (c *Catalog) Validate() error {
	var err error
	seen := make(map[string]int)
	for i, e := range c.Documents {
		where := fmt.Sprintf("document %d", i+1)
		if e.Name != "" {
			where = fmt.Sprintf("document %d (%s)", i+1, e.Name)
		}
		if strings.TrimSpace(e.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("%s: name is required", where))
		}
		if strings.TrimSpace(e.Path) == "" {
			err = multierr.Append(err, fmt.Errorf("%s: path is required", where))
		}
		if e.DefaultSpeed != "" {
			if _, perr := reveal.ParseSpeed(e.DefaultSpeed); perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s: %w", where, perr))
			}
		}
		if _, perr := navigate.ParsePolicy(e.TOCRevealMode); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", where, perr))
		}
		switch strings.ToLower(e.InitialMode) {
		case "", ModeGuided, ModeOverview:
		default:
			err = multierr.Append(err, fmt.Errorf("%s: unknown initial mode %q", where, e.InitialMode))
		}
		if e.Slug != "" {
			if prev, ok := seen[e.Slug]; ok {
				err = multierr.Append(err, fmt.Errorf("%s: slug %q already used by document %d", where, e.Slug, prev))
			} else {
				seen[e.Slug] = i + 1
			}
		}
	}
	return err
}

// Find returns the entry with the given slug.
func (c *Catalog) Find(s string) (Entry, bool) {
	for _, e := range c.Documents {
		if e.Slug == s {
			return e, true
		}
	}
	return Entry{}, false
}

// Default returns the first document.
func (c *Catalog) Default() (Entry, bool) {
	if len(c.Documents) == 0 {
		return Entry{}, false
	}
	return c.Documents[0], true
}

// Dump encodes the catalog as YAML.
func Dump(c *Catalog) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog to yaml: %w", err)
	}
	return data, nil
}

// Scan builds a catalog from the supported files in dir, ordered naturally so
// that "2-intro" sorts before "10-heap".
func Scan(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var names []string
	for _, de := range entries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") || !source.IsSupportedExtension(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Sort(natural.StringSlice(names))

	c := &Catalog{}
	for _, name := range names {
		title := strings.TrimSuffix(name, filepath.Ext(name))
		c.Documents = append(c.Documents, Entry{
			Name: title,
			Path: name,
		})
	}
	c.dedupeSlugs()
	return c, nil
}

// dedupeSlugs suffixes repeated slugs, e.g. notes.md and notes.txt.
func (c *Catalog) dedupeSlugs() {
	seen := make(map[string]int)
	for i := range c.Documents {
		s := slug.Make(c.Documents[i].Name)
		seen[s]++
		if n := seen[s]; n > 1 {
			s = fmt.Sprintf("%s-%d", s, n)
		}
		c.Documents[i].Slug = s
	}
}
