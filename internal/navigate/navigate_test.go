package navigate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/zenview/internal/doctree"
	"github.com/dgallion1/zenview/internal/queue"
	"github.com/dgallion1/zenview/internal/reveal"
)

// holdTimer parks every reveal loop until its context is cancelled.
type holdTimer struct{}

func (holdTimer) Wait(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

type stateLog struct {
	mu     sync.Mutex
	events []string
}

func (l *stateLog) UnitRevealed(reveal.Unit) {}

func (l *stateLog) StateChanged(id string, st reveal.State) {
	l.mu.Lock()
	l.events = append(l.events, id+":"+string(st))
	l.mu.Unlock()
}

func (l *stateLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func fiveSections() *doctree.Document {
	doc := &doctree.Document{Dialect: "plain"}
	for i := range 5 {
		doc.Sections = append(doc.Sections, &doctree.Section{
			ID:    fmt.Sprintf("s%d", i),
			Kind:  doctree.KindHeading,
			Level: 1,
			Body:  doctree.Body{Primary: fmt.Sprintf("<p>section %d text</p>", i)},
		})
	}
	doc.Sections[3].Anchors = []string{"deep-anchor"}
	return doc
}

func setup(t *testing.T, obs reveal.Observer) (*doctree.Document, *reveal.Scheduler, *queue.Queue) {
	t.Helper()
	doc := fiveSections()
	sched := reveal.NewScheduler(reveal.Config{Timer: holdTimer{}, Observer: obs})
	t.Cleanup(sched.Close)
	for _, s := range doc.Sections {
		if _, err := sched.Prepare(s.ID, s.Body.Primary, reveal.PrepareOptions{}); err != nil {
			t.Fatalf("prepare %s: %v", s.ID, err)
		}
	}
	q := queue.New(sched, queue.Options{})
	t.Cleanup(q.Clear)
	return doc, sched, q
}

func TestJumpTo_InstantSkip(t *testing.T) {
	doc, sched, q := setup(t, nil)
	nav := New(doc, sched, q, Options{Policy: PolicyInstantSkip})

	nav.JumpTo("s3")

	for _, id := range []string{"s0", "s1", "s2"} {
		if sched.State(id) != reveal.StateRevealed {
			t.Errorf("expected %s revealed, got %s", id, sched.State(id))
		}
		if n := sched.Steps(id); n != 0 {
			t.Errorf("expected %s to skip animation, got %d steps", id, n)
		}
	}
	if sched.State("s3") != reveal.StateRevealing {
		t.Fatalf("expected target to animate, got %s", sched.State("s3"))
	}
	deadline := time.Now().Add(2 * time.Second)
	for sched.Steps("s3") < 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected at least one animation step on the target")
		}
		time.Sleep(time.Millisecond)
	}
	if sched.State("s4") != reveal.StatePending {
		t.Errorf("expected s4 untouched, got %s", sched.State("s4"))
	}
	if !q.Interactive() {
		t.Error("expected jump to enter interactive mode")
	}
}

func TestJumpTo_Parallel(t *testing.T) {
	log := &stateLog{}
	doc, sched, q := setup(t, log)
	nav := New(doc, sched, q, Options{Policy: PolicyParallel})

	nav.JumpTo("s3")

	events := log.get()
	if len(events) != 4 {
		t.Fatalf("expected 4 state events, got %v", events)
	}
	for i, ev := range events {
		want := fmt.Sprintf("s%d:%s", i, reveal.StateRevealing)
		if ev != want {
			t.Errorf("event %d: expected %s, got %s", i, want, ev)
		}
	}
	if n := sched.Active(); n != 4 {
		t.Errorf("expected 4 concurrent reveal loops, got %d", n)
	}
	if sched.State("s4") != reveal.StatePending {
		t.Errorf("expected s4 untouched, got %s", sched.State("s4"))
	}
}

// quickTimer lets every reveal loop run without pausing.
type quickTimer struct{}

func (quickTimer) Wait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestJumpTo_ParallelOneWordSections(t *testing.T) {
	log := &stateLog{}
	doc := &doctree.Document{Dialect: "plain"}
	for i := range 4 {
		doc.Sections = append(doc.Sections, &doctree.Section{
			ID:    fmt.Sprintf("w%d", i),
			Kind:  doctree.KindHeading,
			Level: 1,
			Body:  doctree.Body{Primary: "<p>word</p>"},
		})
	}
	sched := reveal.NewScheduler(reveal.Config{Timer: quickTimer{}, Observer: log})
	t.Cleanup(sched.Close)
	for _, s := range doc.Sections {
		units, err := sched.Prepare(s.ID, s.Body.Primary, reveal.PrepareOptions{ForceWords: true})
		if err != nil {
			t.Fatalf("prepare %s: %v", s.ID, err)
		}
		if len(units) != 1 {
			t.Fatalf("expected one unit in %s, got %d", s.ID, len(units))
		}
	}
	q := queue.New(sched, queue.Options{})
	t.Cleanup(q.Clear)
	nav := New(doc, sched, q, Options{Policy: PolicyParallel})

	nav.JumpTo("w3")

	deadline := time.Now().Add(2 * time.Second)
	for _, s := range doc.Sections {
		for sched.State(s.ID) != reveal.StateRevealed {
			if time.Now().After(deadline) {
				t.Fatalf("expected %s revealed, got %s", s.ID, sched.State(s.ID))
			}
			time.Sleep(time.Millisecond)
		}
	}
	events := log.get()
	if len(events) != 8 {
		t.Fatalf("expected 8 state events, got %v", events)
	}
	for i, ev := range events[:4] {
		want := fmt.Sprintf("w%d:%s", i, reveal.StateRevealing)
		if ev != want {
			t.Errorf("event %d: expected %s, got %s", i, want, ev)
		}
	}
}

func TestJumpTo_AnchorScrollAndHighlight(t *testing.T) {
	doc, sched, q := setup(t, nil)

	var scrolled, highlighted []string
	nav := New(doc, sched, q, Options{
		Policy:      PolicyInstantSkip,
		Scroller:    queue.ScrollFunc(func(id string) { scrolled = append(scrolled, id) }),
		Highlighter: HighlightFunc(func(id string) { highlighted = append(highlighted, id) }),
	})

	nav.JumpTo("deep-anchor")
	if sched.State("s3") != reveal.StateRevealing {
		t.Errorf("expected anchor to resolve to s3, got state %s", sched.State("s3"))
	}
	if len(scrolled) != 1 || scrolled[0] != "deep-anchor" {
		t.Errorf("expected scroll to the anchor, got %v", scrolled)
	}
	if nav.Active() != "deep-anchor" || len(highlighted) != 1 {
		t.Errorf("expected anchor highlighted, got %q %v", nav.Active(), highlighted)
	}
}

func TestJumpTo_RevealedTargetOnlyScrolls(t *testing.T) {
	doc, sched, q := setup(t, nil)
	sched.RevealInstant("s1")

	scrolls := 0
	nav := New(doc, sched, q, Options{
		Policy:   PolicyInstantSkip,
		Scroller: queue.ScrollFunc(func(string) { scrolls++ }),
	})

	nav.JumpTo("s1")
	nav.JumpTo("s1")
	if scrolls != 2 {
		t.Errorf("expected two scrolls, got %d", scrolls)
	}
	if sched.Steps("s1") != 0 || sched.Active() != 0 {
		t.Errorf("expected no animation restart, got steps=%d active=%d", sched.Steps("s1"), sched.Active())
	}
}

func TestJumpTo_UnknownTargetIsNoop(t *testing.T) {
	doc, sched, q := setup(t, nil)

	scrolled := false
	nav := New(doc, sched, q, Options{Scroller: queue.ScrollFunc(func(string) { scrolled = true })})
	nav.JumpTo("nowhere")
	nav.JumpTo("")

	if scrolled || q.Interactive() || nav.Active() != "" {
		t.Error("expected unresolved jump to change nothing")
	}
	for _, s := range doc.Sections {
		if sched.State(s.ID) != reveal.StatePending {
			t.Errorf("expected %s pending, got %s", s.ID, sched.State(s.ID))
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyParallel, false},
		{"instant-skip", PolicyInstantSkip, false},
		{"Parallel", PolicyParallel, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q): expected %q (err=%v), got %q (%v)", tt.in, tt.want, tt.wantErr, got, err)
		}
	}
}
