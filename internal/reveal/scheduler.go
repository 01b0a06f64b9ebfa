package reveal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the reveal lifecycle of one section. It only moves forward.
type State string

const (
	StatePending   State = "pending"
	StateRevealing State = "revealing"
	StateRevealed  State = "revealed"
)

// ErrClosed is returned by Prepare after Close.
var ErrClosed = errors.New("reveal: scheduler closed")

// Observer is the rendering side of the scheduler. Notifications are delivered
// in order after the scheduler lock is released. An Observer may read scheduler
// state but must not call methods that reveal, complete or close sections.
type Observer interface {
	UnitRevealed(u Unit)
	StateChanged(sectionID string, state State)
}

// Config configures a Scheduler.
type Config struct {
	Speed         Speed
	Instant       bool          // reader preference: skip all animation
	BlockDelay    time.Duration // 0 means DefaultBlockDelay
	WordThreshold int           // 0 means DefaultWordThreshold
	Timer         Timer
	Observer      Observer
	Logger        *slog.Logger
}

// Scheduler reveals the units of prepared sections over time. At most one
// reveal loop runs per section; every loop ends in a fully revealed section
// unless the scheduler is closed first.
type Scheduler struct {
	// notifyMu serialises observer delivery; it is always taken before mu.
	notifyMu sync.Mutex

	mu       sync.Mutex
	speed    Speed
	instant  bool
	blockDly time.Duration
	words    int
	timer    Timer
	observer Observer
	log      *slog.Logger

	tracks  map[string]*track
	running int
	closed  bool
	events  []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type track struct {
	id       string
	units    []Unit
	revealed []bool
	state    State
	steps    int // units revealed by the animated loop
	settled  bool

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	onComplete func()
	listeners  []func()
}

// NewScheduler creates a Scheduler. Zero-valued fields in cfg get defaults.
func NewScheduler(cfg Config) *Scheduler {
	if !cfg.Speed.Valid() {
		cfg.Speed = SpeedMedium
	}
	if cfg.BlockDelay <= 0 {
		cfg.BlockDelay = DefaultBlockDelay
	}
	if cfg.WordThreshold <= 0 {
		cfg.WordThreshold = DefaultWordThreshold
	}
	if cfg.Timer == nil {
		cfg.Timer = RealTimer()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		speed:    cfg.Speed,
		instant:  cfg.Instant,
		blockDly: cfg.BlockDelay,
		words:    cfg.WordThreshold,
		timer:    cfg.Timer,
		observer: cfg.Observer,
		log:      cfg.Logger,
		tracks:   make(map[string]*track),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle refers to the reveal of one section.
type Handle struct {
	s    *Scheduler
	id   string
	done <-chan struct{}
}

var settledCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed once the section is fully revealed or the scheduler is closed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel completes the section immediately. See Scheduler.Cancel.
func (h *Handle) Cancel() {
	if h.s != nil {
		h.s.Cancel(h.id)
	}
}

// Wait blocks until Done is closed or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prepare decomposes a section's rendered HTML into units and registers the
// section as pending. Preparing an already known section returns its units.
func (s *Scheduler) Prepare(sectionID, fragment string, opts PrepareOptions) ([]Unit, error) {
	if opts.WordThreshold <= 0 {
		opts.WordThreshold = s.words
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if t, ok := s.tracks[sectionID]; ok {
		units := append([]Unit(nil), t.units...)
		s.mu.Unlock()
		return units, nil
	}
	s.mu.Unlock()

	units, err := Prepare(sectionID, fragment, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if t, ok := s.tracks[sectionID]; ok {
		return append([]Unit(nil), t.units...), nil
	}
	s.tracks[sectionID] = &track{
		id:       sectionID,
		units:    units,
		revealed: make([]bool, len(units)),
		state:    StatePending,
		done:     make(chan struct{}),
	}
	s.log.Debug("prepared section", "section", sectionID, "units", len(units))
	return append([]Unit(nil), units...), nil
}

// Reveal starts the animated reveal of a prepared section. Calling it on a
// section that is already revealing or revealed is a no-op and returns a
// handle to the existing pass; onComplete is then ignored. onComplete runs
// exactly once, after the last unit is revealed or the section is cancelled.
func (s *Scheduler) Reveal(sectionID string, onComplete func()) *Handle {
	s.mu.Lock()
	t := s.tracks[sectionID]
	if t == nil || s.closed {
		s.mu.Unlock()
		return &Handle{s: s, id: sectionID, done: settledCh}
	}
	h := &Handle{s: s, id: sectionID, done: t.done}
	if t.state != StatePending {
		s.mu.Unlock()
		return h
	}
	t.onComplete = onComplete

	var fns []func()
	var loops []*track
	if s.animatesLocked(t) {
		s.startLocked(t)
		loops = append(loops, t)
	} else {
		fns = s.completeLocked(t)
	}
	s.mu.Unlock()
	s.settle(fns, loops)
	return h
}

// RevealTogether starts every pending section in sectionIDs as one step:
// all of them enter revealing before any of them can finish, even sections
// with a single unit. Sections that cannot animate complete after that.
func (s *Scheduler) RevealTogether(sectionIDs ...string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var loops, instant []*track
	for _, id := range sectionIDs {
		t := s.tracks[id]
		if t == nil || t.state != StatePending {
			continue
		}
		if s.animatesLocked(t) {
			s.startLocked(t)
			loops = append(loops, t)
		} else {
			instant = append(instant, t)
		}
	}
	var fns []func()
	for _, t := range instant {
		fns = append(fns, s.completeLocked(t)...)
	}
	s.mu.Unlock()
	s.settle(fns, loops)
}

func (s *Scheduler) animatesLocked(t *track) bool {
	return !s.instant && s.speed.Delay() > 0 && len(t.units) > 0
}

// startLocked moves t to revealing. The loop itself is launched by settle.
func (s *Scheduler) startLocked(t *track) {
	t.state = StateRevealing
	s.notifyState(t)
	ctx, cancel := context.WithCancel(s.ctx)
	t.cancel = cancel
	t.ctx = ctx
	s.running++
	s.wg.Add(1)
}

// settle delivers pending notifications, runs completion callbacks and
// launches the reveal loops of freshly started tracks.
func (s *Scheduler) settle(fns []func(), loops []*track) {
	s.dispatch()
	runAll(fns)
	for _, t := range loops {
		s.log.Debug("reveal started", "section", t.id, "units", len(t.units))
		go s.run(t.ctx, t)
	}
}

func (s *Scheduler) run(ctx context.Context, t *track) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running--
		s.mu.Unlock()
	}()

	for i := 0; ; i++ {
		s.mu.Lock()
		// A cancelled or torn-down track is settled by whoever stopped it.
		if s.closed || t.state != StateRevealing {
			s.mu.Unlock()
			return
		}
		if i >= len(t.units) {
			fns := s.completeLocked(t)
			s.mu.Unlock()
			s.settle(fns, nil)
			s.log.Debug("reveal finished", "section", t.id, "steps", t.steps)
			return
		}
		if t.revealed[i] {
			s.mu.Unlock()
			continue
		}
		t.revealed[i] = true
		t.steps++
		s.notifyUnit(t.units[i])
		delay := s.delayLocked(t.units[i])
		last := i == len(t.units)-1
		s.mu.Unlock()
		s.dispatch()

		if last {
			continue
		}
		if err := s.timer.Wait(ctx, delay); err != nil {
			return
		}
	}
}

// delayLocked is the pause after u. The current speed is read on every call,
// so speed changes apply to the rest of a running pass.
func (s *Scheduler) delayLocked(u Unit) time.Duration {
	base := s.speed.Delay()
	if base == 0 {
		return 0
	}
	if u.Kind == UnitBlock {
		return s.blockDly
	}
	if u.EndsSentence {
		return 2 * base
	}
	return base
}

// RevealInstant marks every unit of the section revealed without any delay
// and fires the completion callbacks once. A running loop for the section is
// cancelled; its next wake-up finds the section settled and does nothing.
func (s *Scheduler) RevealInstant(sectionID string) {
	s.mu.Lock()
	t := s.tracks[sectionID]
	if t == nil || s.closed || t.state == StateRevealed {
		s.mu.Unlock()
		return
	}
	fns := s.completeLocked(t)
	s.mu.Unlock()
	s.settle(fns, nil)
}

// Cancel stops a reveal in progress. The section still ends fully revealed
// and onComplete still fires.
func (s *Scheduler) Cancel(sectionID string) {
	s.RevealInstant(sectionID)
}

// CompleteAll instantly completes every known section.
func (s *Scheduler) CompleteAll() {
	s.completeWhere(func(t *track) bool { return t.state != StateRevealed })
}

// CancelActive instantly completes the sections currently animating.
func (s *Scheduler) CancelActive() {
	s.completeWhere(func(t *track) bool { return t.state == StateRevealing })
}

func (s *Scheduler) completeWhere(match func(t *track) bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var fns []func()
	for _, t := range s.tracks {
		if match(t) {
			fns = append(fns, s.completeLocked(t)...)
		}
	}
	s.mu.Unlock()
	s.settle(fns, nil)
}

// completeLocked settles t as revealed and returns the callbacks to run once
// the lock is released.
func (s *Scheduler) completeLocked(t *track) []func() {
	for i := range t.units {
		if !t.revealed[i] {
			t.revealed[i] = true
			s.notifyUnit(t.units[i])
		}
	}
	t.state = StateRevealed
	s.notifyState(t)
	if t.cancel != nil {
		t.cancel()
	}
	if !t.settled {
		t.settled = true
		close(t.done)
	}

	var fns []func()
	if t.onComplete != nil {
		fns = append(fns, t.onComplete)
		t.onComplete = nil
	}
	fns = append(fns, t.listeners...)
	t.listeners = nil
	return fns
}

// OnRevealed registers fn to run once the section is fully revealed. If it
// already is, fn runs immediately. It reports false for unknown sections and
// after Close.
func (s *Scheduler) OnRevealed(sectionID string, fn func()) bool {
	s.mu.Lock()
	t := s.tracks[sectionID]
	if t == nil || s.closed {
		s.mu.Unlock()
		return false
	}
	if t.state == StateRevealed {
		s.mu.Unlock()
		fn()
		return true
	}
	t.listeners = append(t.listeners, fn)
	s.mu.Unlock()
	return true
}

// State returns the section state, or "" for unknown sections.
func (s *Scheduler) State(sectionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tracks[sectionID]; t != nil {
		return t.state
	}
	return ""
}

// Units returns a copy of the section's units.
func (s *Scheduler) Units(sectionID string) []Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tracks[sectionID]; t != nil {
		return append([]Unit(nil), t.units...)
	}
	return nil
}

// Revealed returns a copy of the per-unit revealed flags.
func (s *Scheduler) Revealed(sectionID string) []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tracks[sectionID]; t != nil {
		return append([]bool(nil), t.revealed...)
	}
	return nil
}

// Steps returns how many units of the section were revealed by animation
// rather than by instant completion.
func (s *Scheduler) Steps(sectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tracks[sectionID]; t != nil {
		return t.steps
	}
	return 0
}

// Progress returns revealed and total unit counts across all sections.
func (s *Scheduler) Progress() (revealed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		total += len(t.units)
		for _, r := range t.revealed {
			if r {
				revealed++
			}
		}
	}
	return revealed, total
}

// Active returns the number of running reveal loops.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Speed returns the current speed.
func (s *Scheduler) Speed() Speed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetSpeed changes the pace for units not yet revealed. Already revealed
// units are never touched.
func (s *Scheduler) SetSpeed(sp Speed) {
	if !sp.Valid() {
		return
	}
	s.mu.Lock()
	s.speed = sp
	s.mu.Unlock()
	s.log.Debug("reveal speed changed", "speed", string(sp))
}

// InstantMode reports whether the instant preference is on.
func (s *Scheduler) InstantMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instant
}

// SetInstantMode toggles the instant preference. Turning it on completes
// every reveal in progress.
func (s *Scheduler) SetInstantMode(on bool) {
	s.mu.Lock()
	s.instant = on
	s.mu.Unlock()
	if on {
		s.CancelActive()
	}
}

// Close tears the scheduler down for a document switch. Running loops are
// stopped without revealing anything further, completion callbacks are
// dropped, and Close returns once every loop has exited. Close must not be
// called from a completion callback.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, t := range s.tracks {
		if t.cancel != nil {
			t.cancel()
		}
		t.onComplete = nil
		t.listeners = nil
		if !t.settled {
			t.settled = true
			close(t.done)
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// notifyUnit and notifyState queue observer calls; mu must be held.
func (s *Scheduler) notifyUnit(u Unit) {
	if obs := s.observer; obs != nil {
		s.events = append(s.events, func() { obs.UnitRevealed(u) })
	}
}

func (s *Scheduler) notifyState(t *track) {
	if obs := s.observer; obs != nil {
		id, st := t.id, t.state
		s.events = append(s.events, func() { obs.StateChanged(id, st) })
	}
}

// dispatch delivers queued observer calls in the order they were queued. It
// returns once every call queued before it was entered has been delivered.
func (s *Scheduler) dispatch() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	events := s.events
	s.events = nil
	s.mu.Unlock()
	for _, ev := range events {
		ev()
	}
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
