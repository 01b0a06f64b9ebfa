package navigate

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dgallion1/zenview/internal/doctree"
	"github.com/dgallion1/zenview/internal/queue"
	"github.com/dgallion1/zenview/internal/reveal"
)

// Policy decides what happens to the sections before a jump target.
type Policy string

const (
	// PolicyInstantSkip completes earlier sections without animation.
	PolicyInstantSkip Policy = "instant-skip"
	// PolicyParallel animates every section up to the target at once.
	PolicyParallel Policy = "parallel"
)

// DefaultPolicy applies when a document does not configure one.
const DefaultPolicy = PolicyParallel

// ParsePolicy accepts the catalog spelling of a policy. Empty means DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyInstantSkip, PolicyParallel:
		return p, nil
	default:
		return "", fmt.Errorf("unknown toc reveal mode %q", s)
	}
}

// Highlighter marks the active table-of-contents entry.
type Highlighter interface {
	Highlight(tocID string)
}

// HighlightFunc adapts a function to Highlighter.
type HighlightFunc func(tocID string)

func (f HighlightFunc) Highlight(tocID string) { f(tocID) }

// Options configures a Navigator.
type Options struct {
	Policy      Policy
	Scroller    queue.Scroller
	Highlighter Highlighter
	Logger      *slog.Logger
}

// Navigator turns table-of-contents clicks into reveal decisions.
type Navigator struct {
	doc      *doctree.Document
	sched    *reveal.Scheduler
	queue    *queue.Queue
	policy   Policy
	scroller queue.Scroller
	hl       Highlighter
	log      *slog.Logger

	mu     sync.Mutex
	active string
}

// New creates a Navigator for one document. q may be nil.
func New(doc *doctree.Document, sched *reveal.Scheduler, q *queue.Queue, opts Options) *Navigator {
	if opts.Policy == "" {
		opts.Policy = DefaultPolicy
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Navigator{
		doc:      doc,
		sched:    sched,
		queue:    q,
		policy:   opts.Policy,
		scroller: opts.Scroller,
		hl:       opts.Highlighter,
		log:      opts.Logger,
	}
}

// Policy returns the navigator's policy.
func (n *Navigator) Policy() Policy { return n.policy }

// Resolve maps a section id or an element id inside a section to the
// section's position.
func (n *Navigator) Resolve(targetID string) (int, bool) {
	if targetID == "" || n.doc == nil {
		return -1, false
	}
	if i := n.doc.Index(targetID); i >= 0 {
		return i, true
	}
	for i, s := range n.doc.Sections {
		if slices.Contains(s.Anchors, targetID) {
			return i, true
		}
	}
	return -1, false
}

// JumpTo reveals the target section according to the policy, scrolls to it
// and highlights it. Unknown targets are ignored. Jumping to a section that
// is already revealed only scrolls and highlights.
func (n *Navigator) JumpTo(targetID string) {
	idx, ok := n.Resolve(targetID)
	if !ok {
		n.log.Debug("jump target not found", "target", targetID)
		return
	}
	target := n.doc.Sections[idx]

	switch n.policy {
	case PolicyInstantSkip:
		for _, s := range n.doc.Sections[:idx] {
			if n.sched.State(s.ID) != reveal.StateRevealed {
				n.sched.RevealInstant(s.ID)
			}
		}
		n.sched.Reveal(target.ID, nil)
	default:
		ids := make([]string, 0, idx+1)
		for _, s := range n.doc.Sections[:idx+1] {
			ids = append(ids, s.ID)
		}
		n.sched.RevealTogether(ids...)
	}

	if n.scroller != nil {
		n.scroller.ScrollTo(targetID)
	}
	n.mu.Lock()
	n.active = targetID
	n.mu.Unlock()
	if n.hl != nil {
		n.hl.Highlight(targetID)
	}
	if n.queue != nil {
		n.queue.EnterInteractive()
	}
	n.log.Debug("jumped", "target", targetID, "section", target.ID, "index", idx, "policy", string(n.policy))
}

// Active returns the last highlighted TOC id.
func (n *Navigator) Active() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}
