package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	pkgcache "SignalDesk/pkg/cache"
	applogger "SignalDesk/pkg/logger"
)

// ResultCache memoizes computed results per key. L1 holds the computed pointer so a hit
// returns the very same value; the optional remote level stores JSON.
type ResultCache struct {
	local  *TTLCache
	remote Remote
	group  singleflight.Group
	l      *applogger.Logger
}

type Option func(*ResultCache)

// WithRemote adds a shared second level.
func WithRemote(r Remote) Option {
	return func(c *ResultCache) { c.remote = r }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *ResultCache) { c.l = l }
}

func NewResultCache(clock Clock, opts ...Option) *ResultCache {
	c := &ResultCache{local: NewTTLCache(clock)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type flight[T any] struct {
	v   *T
	hit bool
}

// GetOrCompute returns the cached value for key or runs fn once for all concurrent callers and
// stores its result for ttl. hit reports whether fn was skipped. Errors are never cached.
func GetOrCompute[T any](ctx context.Context, c *ResultCache, key string, ttl time.Duration, fn func(context.Context) (*T, error)) (v *T, hit bool, err error) {
	if v, ok := c.local.Get(key); ok {
		if t, ok := v.(*T); ok {
			return t, true, nil
		}
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.local.Get(key); ok {
			if t, ok := v.(*T); ok {
				return flight[T]{v: t, hit: true}, nil
			}
		}
		if t, ok := getRemote[T](ctx, c, key); ok {
			c.local.Set(key, t, ttl)
			return flight[T]{v: t, hit: true}, nil
		}
		t, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.local.Set(key, t, ttl)
		c.setRemote(ctx, key, t, ttl)
		return flight[T]{v: t}, nil
	})
	if err != nil {
		return nil, false, err
	}
	f := res.(flight[T])
	return f.v, f.hit, nil
}

// getRemote treats every remote failure, including undecodable payloads, as a miss.
func getRemote[T any](ctx context.Context, c *ResultCache, key string) (*T, bool) {
	if c.remote == nil {
		return nil, false
	}
	var t T
	if err := c.remote.Get(ctx, key, &t); err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) && c.l != nil {
			c.l.Warn("cache.remote_get_failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	return &t, true
}

func (c *ResultCache) setRemote(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, key, v, ttl); err != nil && c.l != nil {
		c.l.Warn("cache.remote_set_failed", applogger.String("key", key), applogger.Error(err))
	}
}
