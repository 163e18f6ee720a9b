package agents

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/tools/webfetch"
)

// FetchAgent runs the enrichment stage: one Wikipedia summary plus recent news
// per entity, fanned out concurrently with per-entity caching.
type FetchAgent struct {
	fetcher webfetch.Fetcher
	cache   cache.Cache
	ttl     time.Duration
	logger  *log.Logger
}

func NewFetchAgent(fetcher webfetch.Fetcher, c cache.Cache, cacheCfg config.CacheConfig, logger *log.Logger) *FetchAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)
	}
	return &FetchAgent{
		fetcher: fetcher,
		cache:   c,
		ttl:     time.Duration(cacheCfg.WebFetchTTL) * time.Second,
		logger:  logger,
	}
}

// Fetch enriches every entity and returns records in entity order. Each entity
// gets a record even when both lookups fail, so the result length always
// equals the input length. Cancellation mid-flight leaves unfinished entities
// with empty records instead of failing the stage.
func (a *FetchAgent) Fetch(ctx context.Context, entities []models.Entity, extra telemetry.Fields) []models.FetchRecord {
	records := make([]models.FetchRecord, len(entities))

	var hits, misses int
	g, gctx := errgroup.WithContext(ctx)
	type slot struct {
		i      int
		entity models.Entity
	}
	pending := make([]slot, 0, len(entities))

	// Cache consults are cheap and keep the hit/miss accounting ordered;
	// only actual lookups fan out.
	for i, entity := range entities {
		key := cache.FetchKey(entity.Name)
		var cached models.FetchRecord
		if cache.GetJSON(ctx, a.cache, key, &cached) {
			records[i] = cached
			hits++
			continue
		}
		misses++
		pending = append(pending, slot{i: i, entity: entity})
	}

	for _, s := range pending {
		s := s
		records[s.i] = models.FetchRecord{Entity: s.entity.Name, News: []models.NewsArticle{}}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			record := a.fetcher.FetchEntity(gctx, s.entity.Name)
			records[s.i] = record
			key := cache.FetchKey(s.entity.Name)
			if err := cache.SetJSON(gctx, a.cache, key, record, a.ttl); err != nil {
				a.logger.Printf("%v", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	extra["cache_hits"] = hits
	extra["cache_misses"] = misses
	extra["entities_fetched"] = len(entities)
	return records
}
