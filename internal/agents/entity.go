package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/provider"
	"github.com/aadityasp/agreegraph/utils"
)

const entityPrompt = `You are an entity extraction system. Extract the named entities from the text below.

Return ONLY a JSON array of objects, each with a "name" and a "type" field. Use specific types such as "Person", "Organization", "Location", "Product", "Event", "Technology". Use "Thing" only when nothing more specific applies. Do not include duplicates. Do not include any prose outside the JSON.

Text:
%s`

// EntityAgent runs the extraction stage: LLM entity extraction over the raw
// input text, with dedup by normalized name and a content-hash cache.
type EntityAgent struct {
	llm          provider.Provider
	cache        cache.Cache
	model        string
	temperature  float64
	maxEntities  int
	genericTypes map[string]struct{}
	ttl          time.Duration
	logger       *log.Logger
}

func NewEntityAgent(llm provider.Provider, c cache.Cache, llmCfg config.LLMConfig, agentsCfg config.AgentsConfig, cacheCfg config.CacheConfig, logger *log.Logger) *EntityAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENTITY] ", log.LstdFlags)
	}
	generic := make(map[string]struct{}, len(agentsCfg.GenericTypes)+1)
	generic[""] = struct{}{}
	for _, t := range agentsCfg.GenericTypes {
		generic[strings.ToLower(t)] = struct{}{}
	}
	return &EntityAgent{
		llm:          llm,
		cache:        c,
		model:        llmCfg.EntityModel,
		temperature:  llmCfg.EntityTemp,
		maxEntities:  agentsCfg.MaxEntitiesPerQuery,
		genericTypes: generic,
		ttl:          time.Duration(cacheCfg.EntityTTL) * time.Second,
		logger:       logger,
	}
}

// Extract returns the deduplicated entity list for text. Empty or whitespace
// input short-circuits to an empty list without an LLM call. Extraction
// failures degrade to an empty list; the failure comes back as a non-nil
// error so callers can record the degradation. The returned slice is never
// nil, so session state always serializes as a JSON array.
func (a *EntityAgent) Extract(ctx context.Context, text string, extra telemetry.Fields) ([]models.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return []models.Entity{}, nil
	}

	key := cache.EntitiesKey(text)
	var cached []models.Entity
	if cache.GetJSON(ctx, a.cache, key, &cached) {
		extra["cache_hit"] = true
		extra["entity_count"] = len(cached)
		return cached, nil
	}
	extra["cache_hit"] = false

	raw, err := a.llm.Generate(ctx, fmt.Sprintf(entityPrompt, text), a.model, map[string]interface{}{
		"temperature": a.temperature,
	})
	if err != nil {
		a.logger.Printf("extraction call failed: %v", err)
		extra["entity_count"] = 0
		return []models.Entity{}, fmt.Errorf("entity extraction: %w", err)
	}

	entities, err := a.parse(raw)
	if err != nil {
		a.logger.Printf("unparseable extraction output: %v", err)
		extra["entity_count"] = 0
		return []models.Entity{}, fmt.Errorf("entity extraction: %w", err)
	}

	entities = a.Merge(nil, entities)
	if a.maxEntities > 0 && len(entities) > a.maxEntities {
		entities = entities[:a.maxEntities]
	}
	extra["entity_count"] = len(entities)

	if err := cache.SetJSON(ctx, a.cache, key, entities, a.ttl); err != nil {
		a.logger.Printf("%v", err)
	}
	return entities, nil
}

func (a *EntityAgent) parse(raw string) ([]models.Entity, error) {
	payload, err := utils.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var entities []models.Entity
	if err := json.Unmarshal([]byte(payload), &entities); err != nil {
		return nil, fmt.Errorf("decoding entity list: %w", err)
	}
	out := entities[:0]
	for _, e := range entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Merge appends incoming entities to existing, deduplicating by normalized
// name. On a name collision the first-seen type wins, unless it is generic and
// the incoming type is specific.
func (a *EntityAgent) Merge(existing, incoming []models.Entity) []models.Entity {
	index := make(map[string]int, len(existing))
	merged := make([]models.Entity, 0, len(existing)+len(incoming))
	for _, e := range existing {
		index[e.NormalizedName()] = len(merged)
		merged = append(merged, e)
	}
	for _, e := range incoming {
		key := e.NormalizedName()
		if i, ok := index[key]; ok {
			if a.isGeneric(merged[i].Type) && !a.isGeneric(e.Type) {
				merged[i].Type = e.Type
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, e)
	}
	return merged
}

func (a *EntityAgent) isGeneric(entityType string) bool {
	_, ok := a.genericTypes[strings.ToLower(strings.TrimSpace(entityType))]
	return ok
}
