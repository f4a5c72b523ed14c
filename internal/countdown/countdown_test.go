package countdown

import (
	"context"
	"testing"
	"time"
)

func TestRemainingDecomposesDuration(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	durations := []time.Duration{
		0,
		999 * time.Millisecond,
		time.Second,
		59*time.Minute + 59*time.Second,
		25*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Millisecond,
		10 * 24 * time.Hour,
		73*time.Hour + 17*time.Second,
	}
	for _, d := range durations {
		b := Remaining(now.Add(d), now)
		if b.Hours > 23 || b.Minutes > 59 || b.Seconds > 59 {
			t.Fatalf("%v: units out of range %+v", d, b)
		}
		diff := d - b.Duration()
		if diff < 0 || diff >= time.Second {
			t.Fatalf("%v: recombined %v differs by %v", d, b.Duration(), diff)
		}
	}
}

func TestRemainingClampsNegative(t *testing.T) {
	now := time.Now()
	if b := Remaining(now.Add(-time.Hour), now); !b.IsZero() {
		t.Fatalf("expected zero breakdown, got %+v", b)
	}
}

func TestEngineExpiresAndNeverResumes(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine("registration")
	if e.Tick(start).State != StateLoading {
		t.Fatalf("expected loading before a deadline is known")
	}

	e.Load(start.Add(2*time.Second), "timers/registration")
	snap := e.Tick(start)
	if snap.State != StateActive || snap.Remaining.Seconds != 2 {
		t.Fatalf("expected 2s active, got %+v", snap)
	}

	if snap := e.Tick(start.Add(2 * time.Second)); snap.State != StateActive {
		t.Fatalf("exactly at the deadline the engine is still active, got %s", snap.State)
	}

	snap = e.Tick(start.Add(3 * time.Second))
	if snap.State != StateExpired || !snap.Remaining.IsZero() {
		t.Fatalf("expected expired zeros, got %+v", snap)
	}

	// A clock going backwards must not revive the countdown.
	if snap := e.Tick(start); snap.State != StateExpired || !snap.Remaining.IsZero() {
		t.Fatalf("expired engine resumed: %+v", snap)
	}

	e.Load(start.Add(time.Hour), "late")
	if e.State() != StateExpired {
		t.Fatalf("load after expiry should be ignored")
	}
}

func TestEngineUnavailableIsTerminal(t *testing.T) {
	e := NewEngine("quiz")
	e.MarkUnavailable()
	e.Load(time.Now().Add(time.Hour), "store")
	if snap := e.Tick(time.Now()); snap.State != StateUnavailable {
		t.Fatalf("expected unavailable, got %s", snap.State)
	}
}

func TestRunStopsAtExpiry(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}

	e := NewEngine("registration")
	e.Load(base.Add(3*time.Second), "test")

	var snaps []Snapshot
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(context.Background(), time.Millisecond, clock, func(s Snapshot) { snaps = append(snaps, s) })
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after expiry")
	}
	last := snaps[len(snaps)-1]
	if last.State != StateExpired {
		t.Fatalf("expected final expired snapshot, got %+v", last)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewEngine("registration")
	e.Load(time.Now().Add(time.Hour), "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx, 5*time.Millisecond, nil, func(Snapshot) {})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run ignored cancellation")
	}
}
