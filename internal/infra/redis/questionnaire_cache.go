package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// QuestionnaireCache caches questionnaires in Redis as JSON and falls back to
// a loader on cache miss. Entries are stored as: SET questionnaire:{domain} {json}
// Invalidate bumps questionnaire:gen:{domain}; a fill only lands if the
// generation it loaded under is still current, checked under WATCH.
type QuestionnaireCache struct {
	client *redis.Client
	loader app.QuestionnaireReader
	ttl    time.Duration
	sf     singleflight.Group
	log    *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionnaireCache(client *redis.Client, loader app.QuestionnaireReader, ttl time.Duration, log *zap.Logger) *QuestionnaireCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuestionnaireCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionnaireCache) GetQuestionnaire(ctx context.Context, d domain.Domain) (domain.Questionnaire, error) {
	key := questionnaireKey(d)
	if q, ok := c.cached(ctx, key); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.cached(ctx, key); ok {
			return q, nil
		}
		gen, genErr := c.generation(ctx, d)

		q, err := c.loader.GetQuestionnaire(ctx, d)
		if err != nil {
			return domain.Questionnaire{}, err
		}
		if genErr != nil {
			c.log.Debug("questionnaire cache generation unreadable", zap.String("key", key), zap.Error(genErr))
			return q, nil
		}
		if err := c.fill(ctx, d, gen, q); err != nil {
			c.log.Debug("questionnaire cache fill skipped", zap.String("key", key), zap.Error(err))
		}
		return q, nil
	})
	if err != nil {
		return domain.Questionnaire{}, err
	}
	return result.(domain.Questionnaire), nil
}

var errStaleFill = errors.New("questionnaire invalidated during load")

// Invalidate drops the cached entry for d and outdates loads in flight on any instance.
func (c *QuestionnaireCache) Invalidate(ctx context.Context, d domain.Domain) error {
	if err := c.client.Incr(ctx, generationKey(d)).Err(); err != nil {
		return err
	}
	if err := c.client.Del(ctx, questionnaireKey(d)).Err(); err != nil {
		return err
	}
	c.sf.Forget(questionnaireKey(d))
	return nil
}

func (c *QuestionnaireCache) generation(ctx context.Context, d domain.Domain) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(d)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill writes q unless the generation moved since the load began.
func (c *QuestionnaireCache) fill(ctx context.Context, d domain.Domain, gen int64, q domain.Questionnaire) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	genKey := generationKey(d)
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, questionnaireKey(d), payload, c.ttlWithJitter())
			return nil
		})
		return err
	}, genKey)
}

// cached reads the Redis copy. Redis failures count as misses so reads keep
// flowing to the loader.
func (c *QuestionnaireCache) cached(ctx context.Context, key string) (domain.Questionnaire, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("questionnaire cache read failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Questionnaire{}, false
	}
	var q domain.Questionnaire
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Questionnaire{}, false
	}
	return q, true
}

func questionnaireKey(d domain.Domain) string {
	return "questionnaire:" + string(d)
}

func generationKey(d domain.Domain) string {
	return "questionnaire:gen:" + string(d)
}

func (c *QuestionnaireCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
