package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/infra/memory"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps the memory store and fails selected calls on demand.
type flakyStore struct {
	*memory.Store

	mu             sync.Mutex
	failUsers      bool
	failTimers     bool
	failSubmission int
	submissions    int
	afterGetUser   func(uid string)
	hold           chan struct{}
	held           chan struct{}
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.NewStore()}
}

func (s *flakyStore) GetUser(ctx context.Context, uid string) (domain.UserProfile, error) {
	s.mu.Lock()
	fail := s.failUsers
	hook := s.afterGetUser
	s.mu.Unlock()
	if fail {
		return domain.UserProfile{}, errStoreDown
	}
	u, err := s.Store.GetUser(ctx, uid)
	if hook != nil {
		hook(uid)
	}
	return u, err
}

// interleaveAfterRead runs fn once, right after the next profile read returns.
func (s *flakyStore) interleaveAfterRead(fn func(uid string)) {
	var once sync.Once
	s.mu.Lock()
	s.afterGetUser = func(uid string) { once.Do(func() { fn(uid) }) }
	s.mu.Unlock()
}

func (s *flakyStore) GetTimer(ctx context.Context, scope app.TimerScope, kind domain.TimerKind) (domain.TimerConfig, error) {
	s.mu.Lock()
	fail := s.failTimers
	s.mu.Unlock()
	if fail {
		return domain.TimerConfig{}, errStoreDown
	}
	return s.Store.GetTimer(ctx, scope, kind)
}

func (s *flakyStore) RecordSubmission(ctx context.Context, resp domain.QuizResponse) error {
	s.mu.Lock()
	s.submissions++
	fail := s.failSubmission > 0
	if fail {
		s.failSubmission--
	}
	hold, held := s.hold, s.held
	s.hold, s.held = nil, nil
	s.mu.Unlock()
	if hold != nil {
		close(held)
		<-hold
	}
	if fail {
		return errStoreDown
	}
	return s.Store.RecordSubmission(ctx, resp)
}

// holdNextSubmission parks the next RecordSubmission call. entered is closed
// once the call is parked; release lets it continue.
func (s *flakyStore) holdNextSubmission() (entered <-chan struct{}, release func()) {
	hold := make(chan struct{})
	held := make(chan struct{})
	s.mu.Lock()
	s.hold, s.held = hold, held
	s.mu.Unlock()
	var once sync.Once
	return held, func() { once.Do(func() { close(hold) }) }
}

func (s *flakyStore) setFailTimers(v bool) {
	s.mu.Lock()
	s.failTimers = v
	s.mu.Unlock()
}

func (s *flakyStore) submissionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions
}

type fixture struct {
	store      *flakyStore
	registry   *memory.AttemptRegistry
	timerCache *memory.TimerCache
	gate       *app.Gate
	recorder   *app.Recorder
	countdowns *app.CountdownService
	attempts   *app.AttemptService
}

func newFixture(cfg app.AttemptConfig) *fixture {
	store := newFlakyStore()
	f := &fixture{
		store:      store,
		registry:   memory.NewAttemptRegistry(),
		timerCache: memory.NewTimerCache(),
	}
	f.countdowns = app.NewCountdownService(store, f.timerCache, app.DefaultCountdowns, nil)
	f.gate = app.NewGate(store, store, f.countdowns, nil)
	f.recorder = app.NewRecorder(store, nil)
	f.attempts = app.NewAttemptService(f.gate, f.recorder, f.registry, cfg, nil)
	return f
}

func (f *fixture) seedUser(uid string, domains ...domain.Domain) {
	_ = f.store.SaveUser(context.Background(), domain.UserProfile{
		UID:             uid,
		Email:           uid + "@vitstudent.ac.in",
		DisplayName:     uid,
		SelectedDomains: domains,
		Attempted:       map[domain.Domain]bool{},
	})
}

func (f *fixture) seedQuestionnaire(d domain.Domain, n int) {
	q := domain.Questionnaire{Domain: d}
	for i := 0; i < n; i++ {
		q.Questions = append(q.Questions, domain.Question{Text: "Question", Type: domain.QuestionText})
	}
	_ = f.store.SaveQuestionnaire(context.Background(), q)
}

func (f *fixture) responses() []domain.QuizResponse {
	out, _ := f.store.ListResponses(context.Background())
	return out
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
