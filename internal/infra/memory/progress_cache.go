package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-quiz-service/internal/domain"
)

// ProgressStore is the backing store behind ProgressCache (e.g., Postgres).
type ProgressStore interface {
	Get(ctx context.Context, userID string) (domain.Progress, error)
	Save(ctx context.Context, p domain.Progress) error
}

// ProgressCache caches progress records with TTL to avoid repeated DB hits. Saves write through
// to the backing store before the cache is refreshed.
type ProgressCache struct {
	store ProgressStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[string]cachedProgress
}

type cachedProgress struct {
	progress  domain.Progress
	expiresAt time.Time
}

func NewProgressCache(store ProgressStore, ttl time.Duration) *ProgressCache {
	return &ProgressCache{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedProgress),
	}
}

func (c *ProgressCache) Get(ctx context.Context, userID string) (domain.Progress, error) {
	if p, ok := c.cached(userID); ok {
		return p, nil
	}

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		if p, ok := c.cached(userID); ok {
			return p, nil
		}
		p, err := c.store.Get(ctx, userID)
		if err != nil {
			return domain.Progress{}, err
		}
		c.put(p)
		return p, nil
	})
	if err != nil {
		return domain.Progress{}, err
	}
	return cloneProgress(result.(domain.Progress)), nil
}

func (c *ProgressCache) Save(ctx context.Context, p domain.Progress) error {
	if err := c.store.Save(ctx, p); err != nil {
		c.mu.Lock()
		delete(c.cache, p.UserID)
		c.mu.Unlock()
		return err
	}
	c.put(p)
	return nil
}

func (c *ProgressCache) cached(userID string) (domain.Progress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[userID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Progress{}, false
	}
	return cloneProgress(entry.progress), true
}

func (c *ProgressCache) put(p domain.Progress) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[p.UserID] = cachedProgress{progress: cloneProgress(p), expiresAt: c.clock().Add(ttl)}
	c.mu.Unlock()
}

func (c *ProgressCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
