// Package countdown turns an absolute deadline into a live remaining-time breakdown.
package countdown

import (
	"context"
	"sync"
	"time"
)

const (
	msPerDay    = int64(24 * time.Hour / time.Millisecond)
	msPerHour   = int64(time.Hour / time.Millisecond)
	msPerMinute = int64(time.Minute / time.Millisecond)
	msPerSecond = int64(time.Second / time.Millisecond)
)

// DefaultInterval is the refresh cadence of a running engine.
const DefaultInterval = time.Second

// Breakdown is a remaining duration split into display units.
type Breakdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Duration recombines the breakdown.
func (b Breakdown) Duration() time.Duration {
	total := ((b.Days*24+b.Hours)*60+b.Minutes)*60 + b.Seconds
	return time.Duration(total) * time.Second
}

// IsZero reports whether nothing remains.
func (b Breakdown) IsZero() bool { return b == Breakdown{} }

// Remaining decomposes max(0, target-now) into days, hours, minutes and seconds.
func Remaining(target, now time.Time) Breakdown {
	distance := target.Sub(now).Milliseconds()
	if distance <= 0 {
		return Breakdown{}
	}
	return Breakdown{
		Days:    distance / msPerDay,
		Hours:   (distance % msPerDay) / msPerHour,
		Minutes: (distance % msPerHour) / msPerMinute,
		Seconds: (distance % msPerMinute) / msPerSecond,
	}
}

// State is the lifecycle position of an Engine.
type State string

const (
	StateLoading     State = "loading"
	StateActive      State = "active"
	StateExpired     State = "expired"
	StateUnavailable State = "unavailable"
)

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool { return s == StateExpired || s == StateUnavailable }

// Snapshot is what a countdown shows at one instant.
type Snapshot struct {
	Kind      string    `json:"kind"`
	State     State     `json:"state"`
	Remaining Breakdown `json:"remaining"`
	EndTime   time.Time `json:"endTime,omitempty"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
}

// Engine is a countdown to one deadline. A new deadline needs a new Engine.
type Engine struct {
	kind string

	mu     sync.Mutex
	state  State
	target time.Time
	source string
}

// NewEngine returns an engine in the Loading state.
func NewEngine(kind string) *Engine {
	return &Engine{kind: kind, state: StateLoading}
}

// Load sets the deadline and moves a Loading engine to Active. Source names
// where the deadline came from. Calls after the first are ignored.
func (e *Engine) Load(target time.Time, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateLoading {
		return
	}
	e.target = target
	e.source = source
	e.state = StateActive
}

// MarkUnavailable moves a Loading engine to Unavailable.
func (e *Engine) MarkUnavailable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateLoading {
		e.state = StateUnavailable
	}
}

// State returns the current state without ticking.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tick samples the countdown at now. Once the deadline has passed the engine
// is Expired and reports zeros from then on, whatever now is.
func (e *Engine) Tick(now time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{Kind: e.kind, EndTime: e.target, Source: e.source, At: now}
	if e.state == StateActive {
		if e.target.Sub(now) < 0 {
			e.state = StateExpired
		} else {
			snap.Remaining = Remaining(e.target, now)
		}
	}
	snap.State = e.state
	return snap
}

// Run emits a snapshot immediately and then every interval until ctx is done
// or the engine reaches a terminal state. The final terminal snapshot is emitted.
func (e *Engine) Run(ctx context.Context, interval time.Duration, now func() time.Time, emit func(Snapshot)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}

	snap := e.Tick(now())
	emit(snap)
	if snap.State.Terminal() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := e.Tick(now())
			emit(snap)
			if snap.State.Terminal() {
				return
			}
		}
	}
}
