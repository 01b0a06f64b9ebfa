// Package session ties one open document to its reveal machinery and keeps
// at most one document open per Viewer.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/doctree"
	"github.com/dgallion1/zenview/internal/media"
	"github.com/dgallion1/zenview/internal/navigate"
	"github.com/dgallion1/zenview/internal/parser"
	"github.com/dgallion1/zenview/internal/prefs"
	"github.com/dgallion1/zenview/internal/queue"
	"github.com/dgallion1/zenview/internal/reveal"
	"github.com/dgallion1/zenview/internal/source"
)

// ErrClosed is returned when starting a session that has been torn down.
var ErrClosed = errors.New("session closed")

// Options configures a Viewer. Every field is optional.
type Options struct {
	Loader        *source.Loader
	Prefs         *prefs.Store
	Galleries     map[string]media.Gallery
	WordThreshold int
	BlockDelay    time.Duration
	SectionPause  time.Duration

	// Rendering collaborators.
	Observer    reveal.Observer
	Scroller    queue.Scroller
	Highlighter navigate.Highlighter

	// Policy overrides the document's configured TOC reveal mode.
	Policy navigate.Policy

	Timer  reveal.Timer
	Logger *slog.Logger
}

// Viewer is the process-wide owner of the open document.
type Viewer struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewViewer creates a Viewer with no open document.
func NewViewer(opts Options) *Viewer {
	if opts.Loader == nil {
		opts.Loader = source.NewLoader()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Viewer{opts: opts, log: opts.Logger}
}

// Open loads and parses the document for entry and makes it current, tearing
// down the previous session first. A document that fails to load opens as the
// error placeholder; only a cancelled ctx returns an error.
func (v *Viewer) Open(ctx context.Context, entry catalog.Entry) (*Session, error) {
	md, err := v.opts.Loader.Load(ctx, entry.Path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	loadErr := ""
	if err != nil {
		v.log.Warn("document load failed, showing placeholder", "path", entry.Path, "error", err)
		loadErr = err.Error()
	}

	doc := parser.New(parser.WithLogger(v.log)).Parse(md)
	if entry.Bilingual && doc.Dialect != "bilingual" {
		v.log.Warn("entry is marked bilingual but parsed as plain", "path", entry.Path)
	}
	s := v.OpenDocument(entry, doc)
	s.LoadError = loadErr
	return s, nil
}

// OpenDocument makes an already parsed document current.
func (v *Viewer) OpenDocument(entry catalog.Entry, doc *doctree.Document) *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current != nil {
		v.current.teardown()
	}
	s := v.newSession(entry, doc)
	v.current = s
	v.log.Info("document opened",
		"session", s.ID,
		"slug", entry.Slug,
		"dialect", doc.Dialect,
		"sections", len(doc.Sections),
	)
	return s
}

// Current returns the open session, or nil.
func (v *Viewer) Current() *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Close tears down the open session.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current != nil {
		v.current.teardown()
		v.current = nil
	}
}

func (v *Viewer) newSession(entry catalog.Entry, doc *doctree.Document) *Session {
	speed := entry.Speed()
	instant := false
	if v.opts.Prefs != nil {
		p := v.opts.Prefs.Get()
		if p.Speed.Valid() {
			speed = p.Speed
		}
		instant = p.Instant
	}
	policy := v.opts.Policy
	if policy == "" {
		policy = entry.Policy()
	}

	id := uuid.NewString()
	log := v.log.With("session", id)
	sched := reveal.NewScheduler(reveal.Config{
		Speed:         speed,
		Instant:       instant,
		BlockDelay:    v.opts.BlockDelay,
		WordThreshold: v.opts.WordThreshold,
		Timer:         v.opts.Timer,
		Observer:      v.opts.Observer,
		Logger:        log,
	})
	q := queue.New(sched, queue.Options{
		TopLevel: func(sectionID string) bool {
			sec := doc.Section(sectionID)
			return sec != nil && sec.Level <= 1
		},
		Scroller: v.opts.Scroller,
		Pause:    v.opts.SectionPause,
		Timer:    v.opts.Timer,
		Logger:   log,
	})
	return &Session{
		ID:        id,
		Entry:     entry,
		Doc:       doc,
		Scheduler: sched,
		Queue:     q,
		Navigator: navigate.New(doc, sched, q, navigate.Options{
			Policy:      policy,
			Scroller:    v.opts.Scroller,
			Highlighter: v.opts.Highlighter,
			Logger:      log,
		}),
		Gate:      media.NewGate(sched, v.opts.Galleries, log),
		log:       log,
		secondary: make(map[string]bool),
	}
}

// Session is one open document.
type Session struct {
	ID        string
	Entry     catalog.Entry
	Doc       *doctree.Document
	LoadError string

	Scheduler *reveal.Scheduler
	Queue     *queue.Queue
	Navigator *navigate.Navigator
	Gate      *media.Gate

	log *slog.Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	secondary map[string]bool
}

// Start prepares every section and begins the guided pass with the first
// section. In overview mode headings appear at once and the guided pass
// starts at the first section still pending. Calling Start twice is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	opts := reveal.PrepareOptions{ForceWords: s.Doc.Dialect == "bilingual"}
	for _, sec := range s.Doc.Sections {
		if _, err := s.Scheduler.Prepare(sec.ID, sec.Body.Primary, opts); err != nil {
			if errors.Is(err, reveal.ErrClosed) {
				return ErrClosed
			}
			s.log.Warn("prepare section failed", "section", sec.ID, "error", err)
		}
	}

	if s.Entry.Overview() {
		for _, sec := range s.Doc.Sections {
			if sec.Kind == doctree.KindHeading {
				s.Scheduler.RevealInstant(sec.ID)
			}
		}
	}
	for _, sec := range s.Doc.Sections {
		if s.Scheduler.State(sec.ID) == reveal.StatePending {
			s.Queue.Enqueue(sec.ID)
			break
		}
	}
	return nil
}

// Visible reports that a section has scrolled into view.
func (s *Session) Visible(sectionID string) {
	if s.Closed() {
		return
	}
	s.Queue.Enqueue(sectionID)
}

// JumpTo follows a table-of-contents link.
func (s *Session) JumpTo(targetID string) {
	if s.Closed() {
		return
	}
	s.Navigator.JumpTo(targetID)
}

// ToggleSecondary flips the secondary-language body of a bilingual section
// and returns whether it is now shown. Sections without one stay hidden.
func (s *Session) ToggleSecondary(sectionID string) bool {
	sec := s.Doc.Section(sectionID)
	if sec == nil || sec.Body.Secondary == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secondary[sectionID] = !s.secondary[sectionID]
	return s.secondary[sectionID]
}

// SecondaryShown reports whether the secondary body of a section is shown.
func (s *Session) SecondaryShown(sectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secondary[sectionID]
}

// Progress returns the number of revealed units and the total.
func (s *Session) Progress() (revealed, total int) {
	return s.Scheduler.Progress()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// teardown clears the queue before closing the scheduler.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Queue.Clear()
	s.Scheduler.Close()
	s.log.Info("document closed", "slug", s.Entry.Slug)
}
