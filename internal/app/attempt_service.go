package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"recruitment-portal/internal/attempt"
	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/logging"

	"go.uber.org/zap"
)

// AttemptRegistry abstracts where live attempts are tracked (in-memory, Redis-marked, etc).
type AttemptRegistry interface {
	// Register stores a unless an attempt with the same key exists, in which
	// case the existing one is returned with false.
	Register(a *Attempt) (*Attempt, bool)
	Get(key AttemptKey) (*Attempt, bool)
	Remove(key AttemptKey)
	Keys() []AttemptKey
}

// AttemptKey identifies an attempt.
type AttemptKey struct {
	UserID string
	Domain domain.Domain
}

func (k AttemptKey) String() string {
	return k.UserID + ":" + string(k.Domain)
}

// AttemptPhase is the lifecycle position of an attempt.
type AttemptPhase string

const (
	PhaseInProgress AttemptPhase = "in_progress"
	PhaseSubmitting AttemptPhase = "submitting"
	PhaseSubmitted  AttemptPhase = "submitted"
	PhaseDiscarded  AttemptPhase = "discarded"
)

// AttemptStatus is a snapshot of an attempt.
type AttemptStatus struct {
	UserID           string               `json:"userId"`
	Domain           domain.Domain        `json:"domain"`
	Phase            AttemptPhase         `json:"phase"`
	Current          int                  `json:"current"`
	Total            int                  `json:"total"`
	Answers          map[string]string    `json:"answers"`
	RemainingSeconds int                  `json:"remainingSeconds"`
	Deadline         time.Time            `json:"deadline"`
	Expired          bool                 `json:"expired"`
	Result           *domain.QuizResponse `json:"result,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// AttemptView is returned when an attempt starts or is resumed.
type AttemptView struct {
	Status    AttemptStatus     `json:"status"`
	Questions []domain.Question `json:"questions"`
}

// AttemptConfig tunes attempt timing.
type AttemptConfig struct {
	Duration     time.Duration
	TickInterval time.Duration
}

// AttemptService runs questionnaire attempts from eligibility to submission.
type AttemptService struct {
	gate     *Gate
	recorder *Recorder
	registry AttemptRegistry
	cfg      AttemptConfig
	log      *zap.Logger
}

func NewAttemptService(gate *Gate, recorder *Recorder, registry AttemptRegistry, cfg AttemptConfig, log *zap.Logger) *AttemptService {
	if cfg.Duration <= 0 {
		cfg.Duration = attempt.DefaultDuration
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &AttemptService{gate: gate, recorder: recorder, registry: registry, cfg: cfg, log: logging.OrNop(log)}
}

// Start opens an attempt after the eligibility gate allows it and starts its
// timer. A live attempt for the same user and domain is resumed instead.
func (s *AttemptService) Start(ctx context.Context, uid string, d domain.Domain) (AttemptView, error) {
	key := AttemptKey{UserID: uid, Domain: d}
	if existing, ok := s.registry.Get(key); ok && !existing.closed() {
		if err := s.ensureSelected(ctx, existing); err != nil {
			return AttemptView{}, err
		}
		return existing.view(), nil
	}

	decision, q, err := s.gate.check(ctx, uid, d)
	if err != nil {
		return AttemptView{}, err
	}
	if !decision.Allowed {
		return AttemptView{}, domain.AccessDenied("start attempt", &DeniedError{Decision: decision})
	}

	a := NewAttempt(key, q.Questions)
	a.timer = attempt.NewTimer(s.cfg.Duration,
		attempt.WithInterval(s.cfg.TickInterval),
		attempt.OnTick(a.onTick),
		attempt.OnExpire(func() { s.expire(a) }),
	)

	actual, created := s.registry.Register(a)
	if !created {
		return actual.view(), nil
	}
	a.timer.Start()

	s.log.Info("attempt started",
		zap.String("uid", uid),
		zap.String("domain", string(d)),
		zap.Duration("duration", s.cfg.Duration),
		zap.Int("questions", len(q.Questions)),
	)
	return a.view(), nil
}

// Answer stores the answer for a zero-based question index.
func (s *AttemptService) Answer(_ context.Context, uid string, d domain.Domain, index int, answer string) (AttemptStatus, error) {
	a, err := s.lookup(uid, d)
	if err != nil {
		return AttemptStatus{}, err
	}
	return a.answer(index, answer)
}

// Navigate moves the attempt's question cursor.
func (s *AttemptService) Navigate(_ context.Context, uid string, d domain.Domain, move domain.Move) (AttemptStatus, error) {
	a, err := s.lookup(uid, d)
	if err != nil {
		return AttemptStatus{}, err
	}
	return a.navigate(move), nil
}

// Status returns the live attempt's snapshot.
func (s *AttemptService) Status(_ context.Context, uid string, d domain.Domain) (AttemptStatus, error) {
	a, err := s.lookup(uid, d)
	if err != nil {
		return AttemptStatus{}, err
	}
	return a.status(), nil
}

// Submit records the attempt on user request. After the timer expired the
// partial answers are accepted, which lets a failed forced submission be retried.
func (s *AttemptService) Submit(ctx context.Context, uid string, d domain.Domain) (domain.QuizResponse, error) {
	a, err := s.lookup(uid, d)
	if err != nil {
		return domain.QuizResponse{}, err
	}
	return s.submit(ctx, a, false)
}

// Subscribe returns a channel receiving status updates for the attempt.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(_ context.Context, uid string, d domain.Domain) (<-chan AttemptStatus, func(), error) {
	a, err := s.lookup(uid, d)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := a.subscribe()
	return ch, cancel, nil
}

// Abandon stops and forgets the given attempts, or every live attempt when
// no key is passed. Used on shutdown.
func (s *AttemptService) Abandon(keys ...AttemptKey) {
	if len(keys) == 0 {
		keys = s.registry.Keys()
	}
	for _, key := range keys {
		if a, ok := s.registry.Get(key); ok {
			if a.timer != nil {
				a.timer.Stop()
			}
			s.registry.Remove(key)
		}
	}
}

func (s *AttemptService) lookup(uid string, d domain.Domain) (*Attempt, error) {
	if uid == "" {
		return nil, domain.AuthError("attempt", domain.ErrUnauthenticated)
	}
	a, ok := s.registry.Get(AttemptKey{UserID: uid, Domain: d})
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (s *AttemptService) expire(a *Attempt) {
	a.markExpired()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.submit(ctx, a, true); err != nil {
		if errors.Is(err, domain.ErrSubmitInFlight) {
			s.log.Debug("forced submission deferred to in-flight submit", zap.String("attempt", a.key.String()))
			return
		}
		var denied *DeniedError
		if errors.As(err, &denied) && denied.Decision.Reason == domain.DenyDomainNotSelected {
			return
		}
		s.log.Error("forced submission failed", zap.String("attempt", a.key.String()), zap.Error(err))
		return
	}
	s.log.Info("attempt expired and submitted", zap.String("attempt", a.key.String()))
}

// ensureSelected drops a live attempt for a domain the user no longer holds.
// A failing profile read leaves the attempt alone.
func (s *AttemptService) ensureSelected(ctx context.Context, a *Attempt) error {
	in, err := s.gate.profileInput(ctx, a.key.UserID, a.key.Domain)
	if err != nil {
		s.log.Warn("selection recheck skipped", zap.String("attempt", a.key.String()), zap.Error(err))
		return nil
	}
	decision := evaluateProfile(in)
	if decision.Allowed || decision.Reason != domain.DenyDomainNotSelected {
		return nil
	}
	s.Abandon(a.key)
	a.discard()
	s.log.Info("attempt dropped after domain deselection", zap.String("attempt", a.key.String()))
	return domain.AccessDenied("attempt", &DeniedError{Decision: decision})
}

func (s *AttemptService) submit(ctx context.Context, a *Attempt, forced bool) (domain.QuizResponse, error) {
	if err := s.ensureSelected(ctx, a); err != nil {
		return domain.QuizResponse{}, err
	}
	answers, expired, err := a.beginSubmit(forced)
	if err != nil {
		return domain.QuizResponse{}, err
	}

	resp, err := s.recorder.Submit(ctx, Submission{
		UserID:        a.key.UserID,
		Domain:        a.key.Domain,
		Responses:     answers,
		QuestionCount: len(a.questions),
		Expired:       expired,
	})

	// A duplicate means the store already holds this attempt; nothing is left to retry.
	final := err == nil || errors.Is(err, domain.ErrAlreadyAttempted)
	retryExpired := a.finishSubmit(resp, err, final)
	if final {
		a.timer.Stop()
		s.registry.Remove(a.key)
	}
	if retryExpired {
		go s.expire(a)
	}
	return resp, err
}

// Attempt is one user's in-progress questionnaire for one domain.
type Attempt struct {
	key       AttemptKey
	questions []domain.Question
	timer     *attempt.Timer

	mu            sync.Mutex
	answers       map[string]string
	cursor        domain.Cursor
	submitting    bool
	submitted     bool
	discarded     bool
	expired       bool
	expiryPending bool
	result        *domain.QuizResponse
	lastErr       string
	subscribers   map[chan AttemptStatus]struct{}
}

// NewAttempt builds an attempt without a timer; AttemptService attaches one on Start.
func NewAttempt(key AttemptKey, questions []domain.Question) *Attempt {
	return &Attempt{
		key:         key,
		questions:   questions,
		answers:     make(map[string]string),
		cursor:      domain.NewCursor(len(questions)),
		subscribers: make(map[chan AttemptStatus]struct{}),
	}
}

// Key identifies the attempt.
func (a *Attempt) Key() AttemptKey { return a.key }

// Deadline is when the attempt's timer runs out.
func (a *Attempt) Deadline() time.Time {
	if a.timer == nil {
		return time.Time{}
	}
	return a.timer.Deadline()
}

func (a *Attempt) closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitted || a.discarded
}

// discard ends an attempt that will not be recorded and releases its subscribers.
func (a *Attempt) discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitted || a.discarded {
		return
	}
	a.discarded = true
	a.broadcastLocked()
	a.closeSubscribersLocked()
}

func (a *Attempt) view() AttemptView {
	return AttemptView{Status: a.status(), Questions: a.questions}
}

func (a *Attempt) answer(index int, text string) (AttemptStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.submitted || a.discarded || a.submitting || a.expired {
		return a.snapshotLocked(), domain.ErrAttemptClosed
	}
	if index < 0 || index >= len(a.questions) {
		return a.snapshotLocked(), domain.Invalid("answer", domain.ErrQuestionIndex)
	}
	key := domain.AnswerKey(index)
	if strings.TrimSpace(text) == "" {
		delete(a.answers, key)
	} else {
		a.answers[key] = text
	}
	return a.broadcastLocked(), nil
}

func (a *Attempt) navigate(m domain.Move) AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cursor = a.cursor.Apply(m)
	return a.broadcastLocked()
}

func (a *Attempt) status() AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Attempt) onTick(time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcastLocked()
}

func (a *Attempt) markExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expired = true
	a.broadcastLocked()
}

// beginSubmit takes the single-submitter guard and returns a copy of the answers.
func (a *Attempt) beginSubmit(forced bool) (map[string]string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.submitted || a.discarded {
		return nil, false, domain.ErrAttemptClosed
	}
	if a.submitting {
		if forced {
			a.expiryPending = true
		}
		return nil, false, domain.ErrSubmitInFlight
	}
	a.submitting = true
	a.lastErr = ""
	a.broadcastLocked()

	answers := make(map[string]string, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}
	return answers, a.expired || forced, nil
}

// finishSubmit releases the guard. It reports whether an expiry arrived while
// a failed submission was in flight and still needs to be recorded.
func (a *Attempt) finishSubmit(resp domain.QuizResponse, err error, final bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.submitting = false
	pending := a.expiryPending
	a.expiryPending = false

	if final {
		a.submitted = true
		if err == nil {
			a.result = &resp
		}
		a.broadcastLocked()
		a.closeSubscribersLocked()
		return false
	}
	a.lastErr = err.Error()
	a.broadcastLocked()
	return pending
}

func (a *Attempt) subscribe() (<-chan AttemptStatus, func()) {
	ch := make(chan AttemptStatus, 8)

	a.mu.Lock()
	// The fresh buffer takes the initial snapshot without blocking, and it is
	// queued before any broadcast or close can reach the channel.
	ch <- a.snapshotLocked()
	if a.submitted || a.discarded {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	a.subscribers[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) broadcastLocked() AttemptStatus {
	status := a.snapshotLocked()
	for ch := range a.subscribers {
		select {
		case ch <- status:
		default:
			// Drop the oldest update so a slow reader never blocks the timer.
			select {
			case <-ch:
			default:
			}
			ch <- status
		}
	}
	return status
}

func (a *Attempt) closeSubscribersLocked() {
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
}

func (a *Attempt) snapshotLocked() AttemptStatus {
	answers := make(map[string]string, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}

	phase := PhaseInProgress
	switch {
	case a.submitted:
		phase = PhaseSubmitted
	case a.discarded:
		phase = PhaseDiscarded
	case a.submitting:
		phase = PhaseSubmitting
	}

	status := AttemptStatus{
		UserID:  a.key.UserID,
		Domain:  a.key.Domain,
		Phase:   phase,
		Current: a.cursor.Index(),
		Total:   len(a.questions),
		Answers: answers,
		Expired: a.expired,
		Result:  a.result,
		Error:   a.lastErr,
	}
	if a.timer != nil {
		status.RemainingSeconds = a.timer.RemainingSeconds()
		status.Deadline = a.timer.Deadline()
	}
	if a.expired || a.submitted || a.discarded {
		status.RemainingSeconds = 0
	}
	return status
}
