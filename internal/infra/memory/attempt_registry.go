package memory

import (
	"context"
	"sync"

	"recruitment-portal/internal/app"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry.
type AttemptRegistry struct {
	mu       sync.RWMutex
	attempts map[app.AttemptKey]*app.Attempt
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{
		attempts: make(map[app.AttemptKey]*app.Attempt),
	}
}

func (r *AttemptRegistry) Register(a *app.Attempt) (*app.Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.attempts[a.Key()]; ok {
		return existing, false
	}
	r.attempts[a.Key()] = a
	return a, true
}

func (r *AttemptRegistry) Get(key app.AttemptKey) (*app.Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[key]
	return a, ok
}

func (r *AttemptRegistry) Remove(key app.AttemptKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, key)
}

// Keys lists the live attempts.
func (r *AttemptRegistry) Keys() []app.AttemptKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]app.AttemptKey, 0, len(r.attempts))
	for k := range r.attempts {
		keys = append(keys, k)
	}
	return keys
}

// LiveAttempts lists the running attempts; a single process sees them all.
func (r *AttemptRegistry) LiveAttempts(context.Context) ([]app.AttemptKey, error) {
	return r.Keys(), nil
}
