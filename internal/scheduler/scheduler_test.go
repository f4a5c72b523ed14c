package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestSchedulerRunsRefresh(t *testing.T) {
	r := &countingRefresher{}
	s, err := New("@every 1s", r, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for r.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if r.calls.Load() == 0 {
		t.Fatalf("expected at least one scheduled refresh")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := New("every minute please", &countingRefresher{}, nil); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}

func TestRunOnceSurvivesFailure(t *testing.T) {
	r := &countingRefresher{err: errors.New("store down")}
	s, err := New("", r, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.RunOnce(context.Background())
	s.RunOnce(context.Background())
	if r.calls.Load() != 2 {
		t.Fatalf("expected two refresh calls, got %d", r.calls.Load())
	}
}
