package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"
)

// Store keeps every portal record in process memory. It backs local runs and tests.
type Store struct {
	mu             sync.RWMutex
	users          map[string]domain.UserProfile
	questionnaires map[domain.Domain]domain.Questionnaire
	responses      map[string]map[domain.Domain]domain.QuizResponse
	timers         map[string]domain.TimerConfig
	notices        []domain.Notice
	events         []domain.Event
}

func NewStore() *Store {
	return &Store{
		users:          make(map[string]domain.UserProfile),
		questionnaires: make(map[domain.Domain]domain.Questionnaire),
		responses:      make(map[string]map[domain.Domain]domain.QuizResponse),
		timers:         make(map[string]domain.TimerConfig),
	}
}

func (s *Store) GetUser(_ context.Context, uid string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// SaveUser replaces the profile but never clears an attempted flag already
// stored, so a submission landing between a read and this write survives.
func (s *Store) SaveUser(_ context.Context, user domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneUser(user)
	if prev, ok := s.users[user.UID]; ok {
		for d, done := range prev.Attempted {
			if !done {
				continue
			}
			if next.Attempted == nil {
				next.Attempted = make(map[domain.Domain]bool)
			}
			next.Attempted[d] = true
		}
	}
	s.users[user.UID] = next
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (s *Store) GetQuestionnaire(_ context.Context, d domain.Domain) (domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questionnaires[d]
	if !ok {
		return domain.Questionnaire{}, domain.ErrQuestionnaireNotFound
	}
	return cloneQuestionnaire(q), nil
}

func (s *Store) SaveQuestionnaire(_ context.Context, q domain.Questionnaire) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[q.Domain] = cloneQuestionnaire(q)
	return nil
}

func (s *Store) ListQuestionnaires(_ context.Context) ([]domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Questionnaire, 0, len(s.questionnaires))
	for _, d := range domain.AllDomains {
		if q, ok := s.questionnaires[d]; ok {
			out = append(out, cloneQuestionnaire(q))
		}
	}
	return out, nil
}

// RecordSubmission stores the response and sets the attempted flag under one lock.
func (s *Store) RecordSubmission(_ context.Context, resp domain.QuizResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[resp.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.Attempted[resp.Domain] {
		return domain.ErrAlreadyAttempted
	}
	user = cloneUser(user)
	if user.Attempted == nil {
		user.Attempted = make(map[domain.Domain]bool)
	}
	user.Attempted[resp.Domain] = true
	user.UpdatedAt = resp.Timestamp
	s.users[user.UID] = user

	if s.responses[resp.UserID] == nil {
		s.responses[resp.UserID] = make(map[domain.Domain]domain.QuizResponse)
	}
	s.responses[resp.UserID][resp.Domain] = cloneResponse(resp)
	return nil
}

func (s *Store) ListResponses(_ context.Context) ([]domain.QuizResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizResponse
	for _, byDomain := range s.responses {
		for _, r := range byDomain {
			out = append(out, cloneResponse(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

func (s *Store) GetTimer(_ context.Context, scope app.TimerScope, kind domain.TimerKind) (domain.TimerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.timers[scope.Path(kind)]
	if !ok {
		return domain.TimerConfig{}, domain.ErrTimerNotFound
	}
	return cfg, nil
}

func (s *Store) SaveTimer(_ context.Context, scope app.TimerScope, cfg domain.TimerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[scope.Path(cfg.Kind)] = cfg
	return nil
}

func (s *Store) AddNotice(_ context.Context, n domain.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	return nil
}

func (s *Store) DeleteNotice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i:i], s.notices[i+1:]...)
			return nil
		}
	}
	return domain.ErrNoticeNotFound
}

func (s *Store) ListNotices(_ context.Context) ([]domain.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notice(nil), s.notices...), nil
}

func (s *Store) AddEvent(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.events {
		if e.ID == id {
			s.events = append(s.events[:i:i], s.events[i+1:]...)
			return nil
		}
	}
	return domain.ErrEventNotFound
}

func (s *Store) ListEvents(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Event(nil), s.events...), nil
}

// TimerCache remembers the last deadline read for each timer kind.
type TimerCache struct {
	mu    sync.RWMutex
	known map[domain.TimerKind]time.Time
}

func NewTimerCache() *TimerCache {
	return &TimerCache{known: make(map[domain.TimerKind]time.Time)}
}

func (c *TimerCache) Remember(_ context.Context, kind domain.TimerKind, endTime time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[kind] = endTime
	return nil
}

func (c *TimerCache) LastKnown(_ context.Context, kind domain.TimerKind) (time.Time, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.known[kind]
	return t, ok, nil
}

func cloneUser(u domain.UserProfile) domain.UserProfile {
	u.SelectedDomains = append([]domain.Domain(nil), u.SelectedDomains...)
	if u.Attempted != nil {
		attempted := make(map[domain.Domain]bool, len(u.Attempted))
		for d, v := range u.Attempted {
			attempted[d] = v
		}
		u.Attempted = attempted
	}
	return u
}

func cloneQuestionnaire(q domain.Questionnaire) domain.Questionnaire {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		questions[i] = question
	}
	q.Questions = questions
	return q
}

func cloneResponse(r domain.QuizResponse) domain.QuizResponse {
	responses := make(map[string]string, len(r.Responses))
	for k, v := range r.Responses {
		responses[k] = v
	}
	r.Responses = responses
	return r
}
