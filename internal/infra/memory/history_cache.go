package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"careerprep/internal/app"
	"careerprep/internal/domain"
	"golang.org/x/sync/singleflight"
)

// HistoryCache wraps a ResultRepository and caches each user's history with a
// TTL so stats polling does not hit the database. Saves invalidate the entry.
type HistoryCache struct {
	next  app.ResultRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedHistory
	// versions counts saves per user; a fill started before a save is discarded.
	versions map[string]uint64
}

type cachedHistory struct {
	records   []domain.AssessmentRecord
	expiresAt time.Time
}

func NewHistoryCache(next app.ResultRepository, ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		next:     next,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedHistory),
		versions: make(map[string]uint64),
	}
}

func (c *HistoryCache) SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.AssessmentRecord, error) {
	record, err := c.next.SaveResult(ctx, userID, result)
	if err != nil {
		return record, err
	}
	c.mu.Lock()
	delete(c.cache, userID)
	c.versions[userID]++
	c.mu.Unlock()
	return record, nil
}

func (c *HistoryCache) ListResults(ctx context.Context, userID string) ([]domain.AssessmentRecord, error) {
	if records, ok := c.lookup(userID); ok {
		return records, nil
	}

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		if records, ok := c.lookup(userID); ok {
			return records, nil
		}

		now := c.clock()
		c.mu.RLock()
		version := c.versions[userID]
		c.mu.RUnlock()
		records, err := c.next.ListResults(ctx, userID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.versions[userID] == version {
			c.cache[userID] = cachedHistory{
				records:   records,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.AssessmentRecord(nil), result.([]domain.AssessmentRecord)...), nil
}

func (c *HistoryCache) lookup(userID string) ([]domain.AssessmentRecord, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[userID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return append([]domain.AssessmentRecord(nil), entry.records...), true
}

func (c *HistoryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
