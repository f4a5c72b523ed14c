package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestionnaireCache caches questionnaires with TTL to avoid repeated store hits.
type QuestionnaireCache struct {
	loader app.QuestionnaireReader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[domain.Domain]cachedQuestionnaire
	// gen is bumped by Invalidate; a load started under an older gen is not cached.
	gen map[domain.Domain]uint64
}

type cachedQuestionnaire struct {
	questionnaire domain.Questionnaire
	expiresAt     time.Time
}

func NewQuestionnaireCache(loader app.QuestionnaireReader, ttl time.Duration) *QuestionnaireCache {
	return &QuestionnaireCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Domain]cachedQuestionnaire),
		gen:    make(map[domain.Domain]uint64),
	}
}

func (c *QuestionnaireCache) GetQuestionnaire(ctx context.Context, d domain.Domain) (domain.Questionnaire, error) {
	if q, ok := c.lookup(d); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(string(d), func() (interface{}, error) {
		if q, ok := c.lookup(d); ok {
			return q, nil
		}
		c.mu.RLock()
		gen := c.gen[d]
		c.mu.RUnlock()

		q, err := c.loader.GetQuestionnaire(ctx, d)
		if err != nil {
			return domain.Questionnaire{}, err
		}

		c.mu.Lock()
		if c.gen[d] == gen {
			c.cache[d] = cachedQuestionnaire{
				questionnaire: q,
				expiresAt:     c.clock().Add(c.ttlWithJitterLocked()),
			}
		}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Questionnaire{}, err
	}
	return result.(domain.Questionnaire), nil
}

// Invalidate drops the cached entry for d. A load already in flight still
// answers its callers but is not cached, and later reads start a fresh load.
func (c *QuestionnaireCache) Invalidate(_ context.Context, d domain.Domain) error {
	c.mu.Lock()
	delete(c.cache, d)
	c.gen[d]++
	c.mu.Unlock()
	c.sf.Forget(string(d))
	return nil
}

func (c *QuestionnaireCache) lookup(d domain.Domain) (domain.Questionnaire, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[d]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Questionnaire{}, false
	}
	return entry.questionnaire, true
}

func (c *QuestionnaireCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
