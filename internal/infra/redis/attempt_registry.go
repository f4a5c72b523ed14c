package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"

	"github.com/redis/go-redis/v9"
)

// AttemptRegistry is a Redis-aware implementation of app.AttemptRegistry.
// Notes:
//   - Attempts and their timers stay in a local map; only this process drives them.
//   - Redis marks attempt liveness so operators and other instances can see
//     who is mid-questionnaire. The marker outlives the attempt by at most ttl.
type AttemptRegistry struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	attempts map[app.AttemptKey]*app.Attempt
}

func NewAttemptRegistry(client *redis.Client, ttl time.Duration) *AttemptRegistry {
	return &AttemptRegistry{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), attemptKey(a.Key()), time.Now().UTC().Format(time.RFC3339), r.ttl).Err()
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
	if _, ok := r.attempts[key]; !ok {
		return
	}
	delete(r.attempts, key)
	_ = r.client.Del(context.Background(), attemptKey(key)).Err()
}

// LiveAttempts scans the liveness markers written by every instance.
func (r *AttemptRegistry) LiveAttempts(ctx context.Context) ([]app.AttemptKey, error) {
	var keys []app.AttemptKey
	iter := r.client.Scan(ctx, 0, attemptPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if key, ok := parseAttemptKey(iter.Val()); ok {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

const attemptPrefix = "attempt:"

func attemptKey(key app.AttemptKey) string {
	return attemptPrefix + key.UserID + ":" + string(key.Domain)
}

func parseAttemptKey(raw string) (app.AttemptKey, bool) {
	rest := strings.TrimPrefix(raw, attemptPrefix)
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return app.AttemptKey{}, false
	}
	d, ok := domain.ParseDomain(rest[i+1:])
	if !ok {
		return app.AttemptKey{}, false
	}
	return app.AttemptKey{UserID: rest[:i], Domain: d}, true
}

// Keys lists the attempts driven by this process.
func (r *AttemptRegistry) Keys() []app.AttemptKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]app.AttemptKey, 0, len(r.attempts))
	for k := range r.attempts {
		keys = append(keys, k)
	}
	return keys
}
