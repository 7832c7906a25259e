package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"careerprep/internal/app"
	"careerprep/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// HistoryCache caches each user's assessment history in Redis and falls back to
// the wrapped repository on a miss.
// History is stored as: SET assessments:{userID} <json array>
// Every save bumps INCR assessments:{userID}:v; a fill that started under an
// older version does not write.
type HistoryCache struct {
	client *redis.Client
	next   app.ResultRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewHistoryCache(client *redis.Client, next app.ResultRepository, ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		client: client,
		next:   next,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *HistoryCache) SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.AssessmentRecord, error) {
	record, err := c.next.SaveResult(ctx, userID, result)
	if err != nil {
		return record, err
	}
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key(userID))
		pipe.Incr(ctx, c.versionKey(userID))
		return nil
	})
	return record, nil
}

func (c *HistoryCache) ListResults(ctx context.Context, userID string) ([]domain.AssessmentRecord, error) {
	if records, ok := c.cached(ctx, userID); ok {
		return records, nil
	}

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if records, ok := c.cached(ctx, userID); ok {
			return records, nil
		}

		version, err := c.version(ctx, c.client, userID)
		if err != nil {
			return c.next.ListResults(ctx, userID)
		}
		records, err := c.next.ListResults(ctx, userID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(records); err == nil {
			c.fill(ctx, userID, version, raw)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.AssessmentRecord), nil
}

func (c *HistoryCache) cached(ctx context.Context, userID string) ([]domain.AssessmentRecord, bool) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var records []domain.AssessmentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false
	}
	return records, true
}

// fill stores raw unless a save moved the version on since it was read.
func (c *HistoryCache) fill(ctx context.Context, userID, version string, raw []byte) {
	// A save racing the write fails the transaction and leaves the entry empty.
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.version(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(userID), raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, c.versionKey(userID))
}

func (c *HistoryCache) version(ctx context.Context, g getter, userID string) (string, error) {
	v, err := g.Get(ctx, c.versionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (c *HistoryCache) key(userID string) string {
	return "assessments:" + userID
}

func (c *HistoryCache) versionKey(userID string) string {
	return "assessments:" + userID + ":v"
}

func (c *HistoryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
