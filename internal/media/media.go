package media

import (
	"io"
	"log/slog"
	"sync"

	"github.com/dgallion1/zenview/internal/reveal"
)

// Item is one video or image in a gallery.
type Item struct {
	Src         string `yaml:"src" json:"src"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Gallery is the media attached to one section.
type Gallery struct {
	Title string `yaml:"title" json:"title"`
	Items []Item `yaml:"items" json:"items"`
}

// Showcase is a rendered gallery waiting to be shown.
type Showcase interface {
	Unlock()
}

// UnlockFunc adapts a function to Showcase.
type UnlockFunc func()

func (f UnlockFunc) Unlock() { f() }

// Gate holds media back until the prose of its section is fully revealed.
type Gate struct {
	sched     *reveal.Scheduler
	galleries map[string]Gallery
	log       *slog.Logger

	mu       sync.Mutex
	unlocked map[string]bool
}

// NewGate creates a Gate for one document. galleries is keyed by section id.
func NewGate(sched *reveal.Scheduler, galleries map[string]Gallery, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{
		sched:     sched,
		galleries: galleries,
		log:       log,
		unlocked:  make(map[string]bool),
	}
}

// Gallery returns the gallery configured for a section.
func (g *Gate) Gallery(sectionID string) (Gallery, bool) {
	gal, ok := g.galleries[sectionID]
	return gal, ok
}

// Attach unlocks sc exactly once, when sectionID is fully revealed. If the
// section is already revealed, sc unlocks immediately. It reports false when
// the section is unknown to the scheduler.
func (g *Gate) Attach(sectionID string, sc Showcase) bool {
	var once sync.Once
	return g.sched.OnRevealed(sectionID, func() {
		once.Do(func() {
			g.mu.Lock()
			g.unlocked[sectionID] = true
			g.mu.Unlock()
			g.log.Debug("media unlocked", "section", sectionID)
			sc.Unlock()
		})
	})
}

// AttachAll attaches every configured gallery through open, which builds the
// Showcase for a section. Sections without a prepared reveal are skipped.
func (g *Gate) AttachAll(open func(sectionID string, gal Gallery) Showcase) int {
	n := 0
	for id, gal := range g.galleries {
		if g.Attach(id, open(id, gal)) {
			n++
		}
	}
	return n
}

// Unlocked reports whether media for the section has been shown.
func (g *Gate) Unlocked(sectionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked[sectionID]
}
