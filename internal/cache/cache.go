package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aadityasp/agreegraph/config"
)

// Cache is the backend-agnostic key/value store consulted by every stage.
// Values are opaque JSON-encoded bytes; TTL is evaluated at read time, so an
// expired entry reads as a miss. Implementations must be safe for concurrent
// use by in-flight stage operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Stats() Stats
	Clear(ctx context.Context)
}

// Stats is a snapshot of cache accounting.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Sets          uint64  `json:"sets"`
	Errors        uint64  `json:"errors"`
	TotalRequests uint64  `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
}

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agreegraph_cache_requests_total",
	Help: "Cache requests by backend and result.",
}, []string{"backend", "result"})

// New selects a cache backend from configuration. Disabling the cache swaps in
// a no-op backend so caller logic is unchanged: cache-disabled and cache-empty
// are observably identical.
func New(cfg config.CacheConfig, logger *log.Logger) Cache {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	if !cfg.Enabled {
		logger.Printf("caching disabled")
		return NewNoop()
	}
	switch cfg.Backend {
	case "redis":
		return NewRedis(cfg.Redis, logger)
	default:
		return NewMemory(cfg.MaxSize, logger)
	}
}

// SetJSON marshals v and stores it under key. Marshal failures are logged by
// callers through the returned error; the cache itself is untouched.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	c.Set(ctx, key, data, ttl)
	return nil
}

// GetJSON reads key and unmarshals into v. A decode failure counts as a miss:
// the stored value is unusable, so the caller recomputes.
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) bool {
	data, hit := c.Get(ctx, key)
	if !hit {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

// Noop is the disabled-cache backend: every read misses, every write is dropped.
type Noop struct{}

// NewNoop returns the disabled-cache backend.
func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (n *Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

func (n *Noop) Stats() Stats { return Stats{} }

func (n *Noop) Clear(ctx context.Context) {}
