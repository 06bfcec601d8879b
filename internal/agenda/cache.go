package agenda

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garnizeh/simplymeet/pkg/models"
)

// FetchFunc loads the meetings for one cache key.
type FetchFunc func(ctx context.Context) ([]models.Meeting, error)

// CacheObserver is told whether each lookup was served from memory.
type CacheObserver interface {
	ObserveCacheLookup(hit bool)
}

// DayCache memoizes meetings per (identity, local date). Entries never expire;
// they are dropped by Invalidate, Clear or an identity change. Failures are
// never stored and at most one fetch per key is in flight.
type DayCache struct {
	mu         sync.Mutex
	entries    map[string][]models.Meeting
	identity   int64
	generation uint64

	group    singleflight.Group
	observer CacheObserver
}

func NewDayCache(observer CacheObserver) *DayCache {
	return &DayCache{entries: make(map[string][]models.Meeting), observer: observer}
}

// Key renders the cache key for identity and day.
func Key(identity int64, day time.Time) string {
	return fmt.Sprintf("%d:%s", identity, models.DateKey(day))
}

// GetOrFetch returns the cached meetings for (identity, day) or calls fetch.
// Concurrent callers for the same key share one fetch, which keeps running
// if the caller that started it goes away. A result whose generation was
// superseded by Clear while in flight is returned but not stored.
func (c *DayCache) GetOrFetch(ctx context.Context, identity int64, day time.Time, fetch FetchFunc) ([]models.Meeting, error) {
	key := Key(identity, day)

	c.mu.Lock()
	if c.identity != identity {
		c.resetLocked()
		c.identity = identity
	}
	if m, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.observe(true)
		return slices.Clone(m), nil
	}
	gen := c.generation
	c.mu.Unlock()
	c.observe(false)

	flightKey := fmt.Sprintf("%d/%s", gen, key)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		meetings, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if meetings == nil {
			meetings = []models.Meeting{}
		}
		c.mu.Lock()
		if c.generation == gen {
			c.entries[key] = meetings
		}
		c.mu.Unlock()
		return meetings, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]models.Meeting)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops one entry.
func (c *DayCache) Invalidate(identity int64, day time.Time) {
	c.mu.Lock()
	delete(c.entries, Key(identity, day))
	c.mu.Unlock()
}

// Clear drops every entry and orphans in-flight fetches.
func (c *DayCache) Clear() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *DayCache) resetLocked() {
	c.entries = make(map[string][]models.Meeting)
	c.generation++
}

// Len returns the number of cached days.
func (c *DayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DayCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(hit)
	}
}
