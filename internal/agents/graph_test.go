package agents

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/repository"
	"github.com/aadityasp/agreegraph/repository/inmemory_repository"
)

func newTestGraphAgent(llm *fakeLLM, repo *inmemory_repository.InMemoryGraphRepository) (*GraphAgent, cache.Cache) {
	c := cache.NewMemory(100, nil)
	extractor := NewEntityAgent(llm, c, testLLMConfig(), testAgentsConfig(), testCacheConfig(), nil)
	return NewGraphAgent(llm, extractor, repo, c, nil, testLLMConfig(), testCacheConfig(), nil), c
}

func newRecordedGraphAgent(llm *fakeLLM, repo repository.GraphRepository, out *bytes.Buffer) *GraphAgent {
	c := cache.NewMemory(100, nil)
	extractor := NewEntityAgent(llm, c, testLLMConfig(), testAgentsConfig(), testCacheConfig(), nil)
	recorder := telemetry.NewRecorder(config.TelemetryConfig{Enabled: true}, "console", out)
	return NewGraphAgent(llm, extractor, repo, c, recorder, testLLMConfig(), testCacheConfig(), nil)
}

func TestBuildNodesDedupAndSummaries(t *testing.T) {
	agent, _ := newTestGraphAgent(&fakeLLM{}, inmemory_repository.NewInMemoryGraphRepository())

	entities := []models.Entity{
		{Name: "Apple", Type: "Organization"},
		{Name: "apple", Type: "Organization"},
		{Name: "Neural Engine", Type: "Technology"},
	}
	fetched := []models.FetchRecord{
		{
			Entity:    "Apple",
			Wikipedia: &models.WikipediaSummary{Summary: "Apple Inc. is an American company. It makes phones."},
		},
		{Entity: "Neural Engine"},
	}

	nodes := agent.buildNodes(entities, fetched)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 unique nodes, got %d: %+v", len(nodes), nodes)
	}
	if nodes[0].Summary != "Apple Inc. is an American company." {
		t.Fatalf("expected first-sentence summary, got %q", nodes[0].Summary)
	}
	if nodes[1].Summary != "A Technology entity mentioned in the context." {
		t.Fatalf("expected placeholder summary, got %q", nodes[1].Summary)
	}
}

func TestBuildPersistsToRepository(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		// discovery pass over the context document
		`[{"name":"Tim Cook","type":"Person"}]`,
		// relationship inference
		`[{"from_node":"Tim Cook","to_node":"Apple","type":"leads"}]`,
	}}
	repo := inmemory_repository.NewInMemoryGraphRepository()
	var out bytes.Buffer
	agent := newRecordedGraphAgent(llm, repo, &out)

	entities := []models.Entity{{Name: "Apple", Type: "Organization"}}
	fetched := []models.FetchRecord{
		{Entity: "Apple", Wikipedia: &models.WikipediaSummary{Summary: "Apple Inc. is a company."}},
	}

	extra := telemetry.Fields{}
	graph, err := agent.Build(context.Background(), "s1", entities, fetched, extra)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes (original + discovered), got %d: %+v", len(graph.Nodes), graph.Nodes)
	}
	if len(graph.Relationships) != 1 || graph.Relationships[0].Type != "leads" {
		t.Fatalf("unexpected relationships: %+v", graph.Relationships)
	}
	if persisted, _ := extra["persisted"].(bool); !persisted {
		t.Fatalf("expected persisted=true, got %+v", extra)
	}
	if len(repo.Nodes()) != 2 || len(repo.Relationships()) != 1 {
		t.Fatalf("repository missing upserts: %d nodes %d rels", len(repo.Nodes()), len(repo.Relationships()))
	}

	persistLine := telemetryLineFor(out.String(), "graph_persist")
	if persistLine == "" || !strings.Contains(persistLine, "outcome=success") {
		t.Fatalf("expected success record for graph_persist, got %q", persistLine)
	}
}

func TestBuildStoreOutageRecordsPersistError(t *testing.T) {
	llm := &fakeLLM{responses: []string{`[]`, `[]`}}
	repo := &failingRepo{}
	var out bytes.Buffer
	agent := newRecordedGraphAgent(llm, repo, &out)

	entities := []models.Entity{{Name: "Apple", Type: "Organization"}}
	fetched := []models.FetchRecord{
		{Entity: "Apple", Wikipedia: &models.WikipediaSummary{Summary: "Apple Inc. is a company."}},
	}

	extra := telemetry.Fields{}
	graph, err := agent.Build(context.Background(), "s1", entities, fetched, extra)
	if err != nil {
		t.Fatalf("store outage must not surface as a stage failure: %v", err)
	}

	if repo.calls != 1 {
		t.Fatalf("expected one persistence attempt, got %d", repo.calls)
	}
	if len(graph.Nodes) != 1 {
		t.Fatalf("graph must survive store outage, got %+v", graph)
	}
	if persisted, _ := extra["persisted"].(bool); persisted {
		t.Fatalf("expected persisted=false on outage")
	}

	persistLine := telemetryLineFor(out.String(), "graph_persist")
	if persistLine == "" || !strings.Contains(persistLine, "outcome=error") {
		t.Fatalf("expected error record for graph_persist, got %q", persistLine)
	}
	if !strings.Contains(persistLine, models.ErrGraphStoreUnavailable.Error()) {
		t.Fatalf("persist record must carry the failure: %q", persistLine)
	}
}

func TestInferRelationshipsSkipsSingleNode(t *testing.T) {
	llm := &fakeLLM{}
	agent, _ := newTestGraphAgent(llm, inmemory_repository.NewInMemoryGraphRepository())

	edges, err := agent.inferRelationships(context.Background(), []models.GraphNode{{Name: "Apple"}}, "doc", telemetry.Fields{})
	if err != nil {
		t.Fatalf("inferRelationships: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges for a single node, got %+v", edges)
	}
	if llm.calls != 0 {
		t.Fatalf("single node must not call the model")
	}
}

func TestInferRelationshipsCachedBySortedNodeSet(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`[{"from_node":"Apple","to_node":"Tim Cook","type":"employs"}]`,
	}}
	agent, _ := newTestGraphAgent(llm, inmemory_repository.NewInMemoryGraphRepository())

	nodes := []models.GraphNode{{Name: "Apple"}, {Name: "Tim Cook"}}
	reversed := []models.GraphNode{{Name: "Tim Cook"}, {Name: "Apple"}}

	first, err := agent.inferRelationships(context.Background(), nodes, "doc", telemetry.Fields{})
	if err != nil {
		t.Fatalf("inferRelationships: %v", err)
	}
	extra := telemetry.Fields{}
	second, err := agent.inferRelationships(context.Background(), reversed, "doc", extra)
	if err != nil {
		t.Fatalf("inferRelationships: %v", err)
	}

	if llm.calls != 1 {
		t.Fatalf("reordered node set must hit the cache, got %d calls", llm.calls)
	}
	if hit, _ := extra["relationships_cache_hit"].(bool); !hit {
		t.Fatalf("expected cache hit accounting")
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("cached edges must match: %+v vs %+v", first, second)
	}
}

func TestInferRelationshipsMalformedOutputDegrades(t *testing.T) {
	llm := &fakeLLM{responses: []string{"there are no relationships to speak of"}}
	agent, _ := newTestGraphAgent(llm, inmemory_repository.NewInMemoryGraphRepository())

	nodes := []models.GraphNode{{Name: "Apple"}, {Name: "Google"}}
	edges, err := agent.inferRelationships(context.Background(), nodes, "doc", telemetry.Fields{})
	if err == nil {
		t.Fatalf("malformed output must surface the absorbed failure")
	}
	if len(edges) != 0 {
		t.Fatalf("malformed output must degrade to no edges, got %+v", edges)
	}
}

// telemetryLineFor returns the first console telemetry line for an operation.
func telemetryLineFor(out, op string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "op="+op+" ") {
			return line
		}
	}
	return ""
}
