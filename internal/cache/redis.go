package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aadityasp/agreegraph/config"
)

// Redis is the shared remote cache backend. Connection or command failures
// degrade to always-miss: the error is logged and counted, never propagated,
// so a cache outage can slow the pipeline but cannot block it.
type Redis struct {
	client *redis.Client
	logger *log.Logger

	hits   uint64
	misses uint64
	sets   uint64
	errs   uint64
}

// NewRedis creates a redis cache backend. The connection is lazy; a dead
// server is detected per command and handled as a miss.
func NewRedis(cfg config.RedisConfig, logger *log.Logger) *Redis {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	return &Redis{client: client, logger: logger}
}

// Get reads key from redis. Expiry is handled server-side by SET EX; a
// missing or errored read is a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			atomic.AddUint64(&r.errs, 1)
			r.logger.Printf("redis get %s: %v", key, err)
		}
		atomic.AddUint64(&r.misses, 1)
		cacheRequests.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	atomic.AddUint64(&r.hits, 1)
	cacheRequests.WithLabelValues("redis", "hit").Inc()
	return val, true
}

// Set stores value with server-side expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		atomic.AddUint64(&r.errs, 1)
		r.logger.Printf("redis set %s: %v", key, err)
		return
	}
	atomic.AddUint64(&r.sets, 1)
}

// Stats returns a snapshot of hit/miss accounting.
func (r *Redis) Stats() Stats {
	return newStats(
		atomic.LoadUint64(&r.hits),
		atomic.LoadUint64(&r.misses),
		atomic.LoadUint64(&r.sets),
		atomic.LoadUint64(&r.errs),
	)
}

// Clear flushes the configured database.
func (r *Redis) Clear(ctx context.Context) {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		atomic.AddUint64(&r.errs, 1)
		r.logger.Printf("redis flush: %v", err)
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
