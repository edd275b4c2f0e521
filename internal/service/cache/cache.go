package cache

import (
	"time"

	pkgcache "SignalDesk/pkg/cache"
)

// Clock is the time source used for expiry checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Remote is the optional second level shared between instances (pkg/cache.RedisCache).
type Remote = pkgcache.Service

// TTL policies per operation.
type TTLs struct {
	Market     time.Duration
	Confluence time.Duration
	Sentiment  time.Duration
	Strategies time.Duration
}

// DefaultTTLs returns the stock policy: 120s analyses, 600s sentiment, 3600s strategy catalog.
func DefaultTTLs() TTLs {
	return TTLs{
		Market:     120 * time.Second,
		Confluence: 120 * time.Second,
		Sentiment:  600 * time.Second,
		Strategies: 3600 * time.Second,
	}
}
