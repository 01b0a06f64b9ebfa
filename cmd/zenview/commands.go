package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/doctree"
	"github.com/dgallion1/zenview/internal/media"
	"github.com/dgallion1/zenview/internal/navigate"
	"github.com/dgallion1/zenview/internal/parser"
	"github.com/dgallion1/zenview/internal/prefs"
	"github.com/dgallion1/zenview/internal/reveal"
	"github.com/dgallion1/zenview/internal/session"
	"github.com/dgallion1/zenview/internal/source"
)

// resolveEntry turns the SOURCE argument into a catalog entry, either by slug
// lookup in --catalog or as a plain path or URL. Galleries come from the
// catalog and are nil without one.
func resolveEntry(cmd *cli.Command) (catalog.Entry, map[string]media.Gallery, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return catalog.Entry{}, nil, errors.New("no input source has been specified")
	}
	if path := cmd.String("catalog"); path != "" {
		c, err := catalog.Load(path)
		if err != nil {
			return catalog.Entry{}, nil, err
		}
		e, ok := c.Find(arg)
		if !ok {
			return catalog.Entry{}, nil, fmt.Errorf("no document %q in %s", arg, path)
		}
		if !filepath.IsAbs(e.Path) && !strings.Contains(e.Path, "://") {
			e.Path = filepath.Join(filepath.Dir(path), e.Path)
		}
		return e, c.Media, nil
	}
	name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	return catalog.Entry{
		Name: name,
		Path: arg,
		Slug: slug.Make(name),
	}, nil, nil
}

func loadDocument(ctx context.Context, cmd *cli.Command) (catalog.Entry, *doctree.Document, error) {
	entry, _, err := resolveEntry(cmd)
	if err != nil {
		return entry, nil, err
	}
	log := loggerFrom(ctx)
	md, err := source.Load(ctx, entry.Path)
	if err != nil {
		if ctx.Err() != nil {
			return entry, nil, ctx.Err()
		}
		log.Warn("document load failed, showing placeholder", "path", entry.Path, "error", err)
	}
	return entry, parser.New(parser.WithLogger(log)).Parse(md), nil
}

func runParse(ctx context.Context, cmd *cli.Command) error {
	_, doc, err := loadDocument(ctx, cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	opts := reveal.PrepareOptions{
		WordThreshold: int(cmd.Int("word-threshold")),
		ForceWords:    doc.Dialect == "bilingual",
	}
	fmt.Printf("dialect: %s\nhash:    %s\n\n", doc.Dialect, doc.Hash)
	for _, s := range doc.Sections {
		units, err := reveal.Prepare(s.ID, s.Body.Primary, opts)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", s.ID, err)
		}
		mode := "words"
		if len(units) > 0 && units[0].Kind == reveal.UnitBlock {
			mode = "blocks"
		}
		fmt.Printf("%-20s %-9s L%d %4d %-6s %s\n", s.ID, s.Kind, s.Level, len(units), mode, s.Title)
	}
	return nil
}

func runTOC(ctx context.Context, cmd *cli.Command) error {
	_, doc, err := loadDocument(ctx, cmd)
	if err != nil {
		return err
	}
	printTOC(os.Stdout, doc.TOC, 0)
	return nil
}

func printTOC(w io.Writer, items []*doctree.TOCItem, depth int) {
	for _, it := range items {
		fmt.Fprintf(w, "%s%s  (#%s)\n", strings.Repeat("  ", depth), it.Title, it.ID)
		printTOC(w, it.Children, depth+1)
	}
}

// printer renders revealed units as running text.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	block string
}

func (p *printer) UnitRevealed(u reveal.Unit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := fmt.Sprintf("%s/%d", u.SectionID, u.Block)
	switch {
	case p.block == "":
	case key != p.block:
		fmt.Fprint(p.w, "\n\n")
	case u.Kind == reveal.UnitWord:
		fmt.Fprint(p.w, " ")
	}
	p.block = key
	fmt.Fprint(p.w, u.Text)
}

func (p *printer) StateChanged(string, reveal.State) {}

// showcase prints a gallery once its section has been read.
func (p *printer) showcase(sectionID string, gal media.Gallery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.block != "" {
		fmt.Fprint(p.w, "\n\n")
	}
	p.block = "media/" + sectionID
	title := gal.Title
	if title == "" {
		title = sectionID
	}
	fmt.Fprintf(p.w, "[media] %s (%d items)", title, len(gal.Items))
}

func runRead(ctx context.Context, cmd *cli.Command) error {
	log := loggerFrom(ctx)
	entry, galleries, err := resolveEntry(cmd)
	if err != nil {
		return err
	}

	var speed reveal.Speed
	if sp := cmd.String("speed"); sp != "" {
		if speed, err = reveal.ParseSpeed(sp); err != nil {
			return err
		}
	}
	var policy navigate.Policy
	if p := cmd.String("policy"); p != "" {
		if policy, err = navigate.ParsePolicy(p); err != nil {
			return err
		}
	}
	store, err := prefs.Open(cmd.String("prefs"))
	if err != nil {
		return err
	}

	out := &printer{w: os.Stdout}
	viewer := session.NewViewer(session.Options{
		Prefs:     store,
		Galleries: galleries,
		Observer:  out,
		Policy:    policy,
		Logger:    log,
	})
	defer viewer.Close()

	s, err := viewer.Open(ctx, entry)
	if err != nil {
		return err
	}
	// Command-line flags beat stored preferences.
	if speed != "" {
		s.Scheduler.SetSpeed(speed)
	}
	if cmd.Bool("instant") {
		s.Scheduler.SetInstantMode(true)
	}
	if err := s.Start(); err != nil {
		return err
	}
	s.Gate.AttachAll(func(id string, gal media.Gallery) media.Showcase {
		return media.UnlockFunc(func() { out.showcase(id, gal) })
	})

	done := make(chan struct{})
	var (
		mu      sync.Mutex
		pending = len(s.Doc.Sections)
	)
	settle := func() {
		mu.Lock()
		defer mu.Unlock()
		pending--
		if pending == 0 {
			close(done)
		}
	}
	for _, sec := range s.Doc.Sections {
		if !s.Scheduler.OnRevealed(sec.ID, settle) {
			settle()
		}
	}

	if target := cmd.String("jump"); target != "" {
		if _, ok := s.Navigator.Resolve(target); !ok {
			log.Warn("jump target not found", "target", target)
		}
		s.JumpTo(target)
	}
	// The terminal has no viewport, so every section counts as scrolled into view.
	for _, sec := range s.Doc.Sections {
		s.Visible(sec.ID)
	}

	select {
	case <-done:
		fmt.Fprintln(os.Stdout)
		return nil
	case <-ctx.Done():
		fmt.Fprintln(os.Stdout)
		return ctx.Err()
	}
}
