// Package directory memoizes the tracking accounts, projects and tasks lists
// fetched from the time-tracking API.
package directory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the full record list from the remote API.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Cache holds one remote record list. Concurrent Get calls share a single
// in-flight fetch; an empty or failed fetch leaves the cache unpopulated so a
// later call fetches again.
type Cache[T any] struct {
	name       string
	fetch      FetchFunc[T]
	configured func() bool
	timeout    time.Duration
	log        *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	records []T
	// gen is bumped on Invalidate so a fetch started before it cannot
	// repopulate the cache afterwards.
	gen uint64
}

// NewCache creates a cache. configured is consulted on every Get; when it
// reports false the cache returns an empty list without network access.
func NewCache[T any](name string, fetch FetchFunc[T], configured func() bool, timeout time.Duration, log *slog.Logger) *Cache[T] {
	if configured == nil {
		configured = func() bool { return true }
	}
	return &Cache[T]{
		name:       name,
		fetch:      fetch,
		configured: configured,
		timeout:    timeout,
		log:        log,
	}
}

// Get returns a copy of the cached records, fetching them when the cache is
// empty. Callers may modify the returned slice.
func (c *Cache[T]) Get(ctx context.Context) ([]T, error) {
	if !c.configured() {
		c.log.Debug("tracking credentials not configured, directory unavailable", slog.String("directory", c.name))
		return []T{}, nil
	}

	c.mu.RLock()
	records, gen := c.records, c.gen
	c.mu.RUnlock()
	if len(records) > 0 {
		return slices.Clone(records), nil
	}

	ch := c.group.DoChan(c.name, func() (any, error) {
		return c.load(ctx, gen)
	})
	select {
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "directory fetch abandoned", goerr.V("directory", c.name))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]T)), nil
	}
}

// load runs the shared fetch detached from the first caller's cancellation.
func (c *Cache[T]) load(ctx context.Context, gen uint64) ([]T, error) {
	fetchCtx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(fetchCtx, c.timeout)
		defer cancel()
	}

	c.log.Info("fetching directory", slog.String("directory", c.name))
	records, err := c.fetch(fetchCtx)
	if err != nil {
		c.log.Error("directory fetch failed", slog.String("directory", c.name), slog.String("error", err.Error()))
		return nil, goerr.Wrap(err, "failed to fetch directory", goerr.V("directory", c.name))
	}
	if records == nil {
		records = []T{}
	}

	if len(records) == 0 {
		c.log.Warn("directory fetch returned no records", slog.String("directory", c.name))
		return records, nil
	}

	c.mu.Lock()
	if c.gen == gen {
		c.records = records
	}
	c.mu.Unlock()
	c.log.Info("cached directory", slog.String("directory", c.name), slog.Int("count", len(records)))
	return records, nil
}

// Invalidate drops the cached records and detaches any in-flight fetch, so
// the next Get starts a new one.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.records = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget(c.name)
}

// Len reports how many records are currently cached.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
