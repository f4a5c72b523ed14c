// Package attempt provides the fixed-length countdown bound to one questionnaire attempt.
package attempt

import (
	"sync"
	"time"
)

// DefaultDuration is the time allowed for one attempt.
const DefaultDuration = 20 * time.Minute

// Option configures a Timer.
type Option func(*Timer)

// WithInterval overrides the one-second tick cadence.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		if now != nil {
			t.now = now
		}
	}
}

// OnTick registers a callback receiving the remaining time after every tick.
func OnTick(fn func(remaining time.Duration)) Option {
	return func(t *Timer) { t.onTick = fn }
}

// OnExpire registers the callback fired once when the time is up.
func OnExpire(fn func()) Option {
	return func(t *Timer) { t.onExpire = fn }
}

// Timer counts down a fixed duration. It cannot be paused; expiry fires once.
type Timer struct {
	duration time.Duration
	interval time.Duration
	now      func() time.Time
	onTick   func(time.Duration)
	onExpire func()

	mu       sync.Mutex
	deadline time.Time
	started  bool
	expired  bool

	fireOnce sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewTimer builds a stopped timer for duration.
func NewTimer(duration time.Duration, opts ...Option) *Timer {
	if duration < 0 {
		duration = 0
	}
	t := &Timer{
		duration: duration,
		interval: time.Second,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins the countdown. Subsequent calls do nothing.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.deadline = t.now().Add(t.duration)
	t.mu.Unlock()

	go t.loop()
}

func (t *Timer) loop() {
	defer close(t.done)

	if t.duration == 0 {
		t.fire()
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			remaining := t.Remaining()
			if t.onTick != nil {
				t.onTick(remaining)
			}
			if remaining == 0 {
				t.fire()
				return
			}
		}
	}
}

func (t *Timer) fire() {
	t.fireOnce.Do(func() {
		t.mu.Lock()
		t.expired = true
		t.mu.Unlock()
		if t.onExpire != nil {
			t.onExpire()
		}
	})
}

// Remaining is the time left, never negative. Before Start it is the full duration.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return t.duration
	}
	if t.expired {
		return 0
	}
	left := t.deadline.Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds rounds the remaining time up to whole seconds for display.
func (t *Timer) RemainingSeconds() int {
	left := t.Remaining()
	return int((left + time.Second - 1) / time.Second)
}

// Deadline is the instant the timer expires; zero before Start.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Expired reports whether the expiry callback has been triggered.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Stop cancels the countdown without firing expiry. It is safe to call more
// than once and from inside the callbacks.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Done is closed when the timer goroutine exits.
func (t *Timer) Done() <-chan struct{} { return t.done }
