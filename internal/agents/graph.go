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
	"github.com/aadityasp/agreegraph/repository"
	"github.com/aadityasp/agreegraph/utils"
)

const relationshipPrompt = `You are a knowledge graph builder. Given the entities below, infer the meaningful relationships between them based on the context.

Entities:
%s

Context:
%s

Return ONLY a JSON array of objects, each with "from_node", "to_node" and "type" fields, where from_node and to_node are entity names from the list above and type is a short verb phrase such as "develops", "acquired", "located_in", "partnered_with". Return an empty array if no relationships can be inferred. Do not include any prose outside the JSON.`

// GraphAgent runs the graph construction stage: nodes from the combined
// enrichment context, LLM relationship inference, and durable upsert.
type GraphAgent struct {
	llm         provider.Provider
	extractor   *EntityAgent
	repo        repository.GraphRepository
	cache       cache.Cache
	recorder    *telemetry.Recorder
	model       string
	temperature float64
	ttl         time.Duration
	logger      *log.Logger
}

func NewGraphAgent(llm provider.Provider, extractor *EntityAgent, repo repository.GraphRepository, c cache.Cache, recorder *telemetry.Recorder, llmCfg config.LLMConfig, cacheCfg config.CacheConfig, logger *log.Logger) *GraphAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[GRAPH] ", log.LstdFlags)
	}
	return &GraphAgent{
		llm:         llm,
		extractor:   extractor,
		repo:        repo,
		cache:       c,
		recorder:    recorder,
		model:       llmCfg.GraphModel,
		temperature: llmCfg.GraphTemp,
		ttl:         time.Duration(cacheCfg.KnowledgeGraphTTL) * time.Second,
		logger:      logger,
	}
}

// Build constructs the knowledge graph from extracted entities and their
// fetched context. A second extraction pass over the combined context surfaces
// entities the original text never mentioned. The returned graph is always
// usable; a non-nil error reports an absorbed model-output degradation.
// Persistence runs as its own recorded graph_persist operation so a store
// outage is visible in telemetry without failing the stage.
func (a *GraphAgent) Build(ctx context.Context, sessionID string, entities []models.Entity, fetched []models.FetchRecord, extra telemetry.Fields) (models.KnowledgeGraph, error) {
	doc := contextDocument(fetched)

	var stageErr error
	all := entities
	if strings.TrimSpace(doc) != "" {
		discovered, err := a.extractor.Extract(ctx, doc, telemetry.Fields{})
		if err != nil {
			stageErr = err
		}
		all = a.extractor.Merge(entities, discovered)
	}

	nodes := a.buildNodes(all, fetched)
	relationships, err := a.inferRelationships(ctx, nodes, doc, extra)
	if err != nil && stageErr == nil {
		stageErr = err
	}

	graph := models.KnowledgeGraph{Nodes: nodes, Relationships: relationships}
	extra["node_count"] = len(nodes)
	extra["relationship_count"] = len(relationships)

	persistErr := a.recorder.Record(ctx, sessionID, "graph_agent", "graph_persist",
		telemetry.Fields{"node_count": len(nodes), "relationship_count": len(relationships)},
		func(ctx context.Context) error {
			return a.repo.SaveKnowledgeGraph(ctx, graph)
		})
	if persistErr != nil {
		a.logger.Printf("graph persistence failed, continuing without durable store: %v", persistErr)
		extra["persisted"] = false
	} else {
		extra["persisted"] = true
	}
	return graph, stageErr
}

// buildNodes merges entities into unique nodes by normalized name. The node
// summary is the first sentence of the entity's Wikipedia extract, falling
// back to a typed placeholder; on a name collision the longer summary wins.
func (a *GraphAgent) buildNodes(entities []models.Entity, fetched []models.FetchRecord) []models.GraphNode {
	summaries := make(map[string]string, len(fetched))
	for _, record := range fetched {
		if record.Wikipedia != nil && record.Wikipedia.Summary != "" {
			summaries[models.NormalizeName(record.Entity)] = utils.FirstSentence(record.Wikipedia.Summary)
		}
	}

	index := make(map[string]int, len(entities))
	nodes := make([]models.GraphNode, 0, len(entities))
	for _, entity := range entities {
		key := entity.NormalizedName()
		if key == "" {
			continue
		}
		summary, ok := summaries[key]
		if !ok {
			entityType := entity.Type
			if entityType == "" {
				entityType = "Thing"
			}
			summary = fmt.Sprintf("A %s entity mentioned in the context.", entityType)
		}
		if i, dup := index[key]; dup {
			if len(summary) > len(nodes[i].Summary) {
				nodes[i].Summary = summary
			}
			continue
		}
		index[key] = len(nodes)
		nodes = append(nodes, models.GraphNode{Name: entity.Name, Type: entity.Type, Summary: summary})
	}
	return nodes
}

// inferRelationships asks the LLM for typed edges between the given nodes.
// The result is keyed by the sorted node name set so node ordering does not
// fragment the cache. Any failure yields an empty edge list plus the absorbed
// error for the caller's telemetry.
func (a *GraphAgent) inferRelationships(ctx context.Context, nodes []models.GraphNode, doc string, extra telemetry.Fields) ([]models.GraphEdge, error) {
	if len(nodes) < 2 {
		return []models.GraphEdge{}, nil
	}

	key := cache.RelationshipsKey(nodes)
	var cached []models.GraphEdge
	if cache.GetJSON(ctx, a.cache, key, &cached) {
		extra["relationships_cache_hit"] = true
		return cached, nil
	}
	extra["relationships_cache_hit"] = false

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, fmt.Sprintf("- %s (%s)", n.Name, n.Type))
	}
	prompt := fmt.Sprintf(relationshipPrompt, strings.Join(names, "\n"), doc)

	raw, err := a.llm.Generate(ctx, prompt, a.model, map[string]interface{}{
		"temperature": a.temperature,
	})
	if err != nil {
		a.logger.Printf("relationship inference failed: %v", err)
		return []models.GraphEdge{}, fmt.Errorf("relationship inference: %w", err)
	}

	payload, err := utils.ExtractJSON(raw)
	if err != nil {
		a.logger.Printf("unparseable relationship output: %v", err)
		return []models.GraphEdge{}, fmt.Errorf("relationship inference: %w", err)
	}
	var edges []models.GraphEdge
	if err := json.Unmarshal([]byte(payload), &edges); err != nil {
		a.logger.Printf("decoding relationship list: %v", err)
		return []models.GraphEdge{}, fmt.Errorf("relationship inference: %w", err)
	}

	out := edges[:0]
	for _, e := range edges {
		if strings.TrimSpace(e.FromNode) == "" || strings.TrimSpace(e.ToNode) == "" {
			continue
		}
		out = append(out, e)
	}

	if err := cache.SetJSON(ctx, a.cache, key, out, a.ttl); err != nil {
		a.logger.Printf("%v", err)
	}
	return out, nil
}

// contextDocument concatenates the fetched evidence into one text block:
// each entity's Wikipedia summary plus its news headlines.
func contextDocument(fetched []models.FetchRecord) string {
	var b strings.Builder
	for _, record := range fetched {
		if record.Wikipedia != nil && record.Wikipedia.Summary != "" {
			fmt.Fprintf(&b, "%s: %s\n", record.Entity, record.Wikipedia.Summary)
		}
		for _, article := range record.News {
			fmt.Fprintf(&b, "%s (news): %s\n", record.Entity, article.Title)
		}
	}
	return b.String()
}
