package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/pipeline"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/repository/inmemory_repository"
)

type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt, model string, options map[string]interface{}) (string, error) {
	f.calls++
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

type fakeFetcher struct {
	calls int
}

func (f *fakeFetcher) FetchEntity(ctx context.Context, name string) models.FetchRecord {
	f.calls++
	return models.FetchRecord{
		Entity:    name,
		Wikipedia: &models.WikipediaSummary{Summary: name + " is a well known subject.", URL: "https://en.wikipedia.org/wiki/" + name},
		News:      []models.NewsArticle{},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:      "test-key",
			EntityModel: "entity-model",
			GraphModel:  "graph-model",
			JudgeModel:  "judge-model",
		},
		Cache: config.CacheConfig{
			Enabled:           true,
			Backend:           "memory",
			MaxSize:           100,
			EntityTTL:         3600,
			WebFetchTTL:       1800,
			KnowledgeGraphTTL: 3600,
		},
		Agents: config.AgentsConfig{
			MaxEntitiesPerQuery: 20,
			GenericTypes:        []string{"Thing", "Unknown"},
		},
		Telemetry: config.TelemetryConfig{Enabled: true},
	}
}

const (
	entityResponse = `[{"name":"Apple","type":"Organization"}]`
	judgeResponse  = `{"agreement_status":"Agree","summary":"Sources line up.","search_suggestions":[]}`
)

func newTestOrchestrator(t *testing.T, llm *fakeLLM, fetcher *fakeFetcher, out *bytes.Buffer) *pipeline.Orchestrator {
	t.Helper()
	cfg := testConfig()
	if out == nil {
		out = &bytes.Buffer{}
	}
	recorder := telemetry.NewRecorder(cfg.Telemetry, "console", out)
	orch, err := pipeline.NewOrchestratorWithProvider(cfg, llm, cache.New(cfg.Cache, nil),
		inmemory_repository.NewInMemoryGraphRepository(), recorder, fetcher, nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return orch
}

func TestRunCompletesAllStages(t *testing.T) {
	llm := &fakeLLM{responses: []string{entityResponse, entityResponse, judgeResponse}}
	fetcher := &fakeFetcher{}
	var out bytes.Buffer
	orch := newTestOrchestrator(t, llm, fetcher, &out)

	state, err := orch.Run(context.Background(), "", "Apple is doing well.")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
	if len(state.Entities) != 1 || state.Entities[0].Name != "Apple" {
		t.Fatalf("unexpected entities: %+v", state.Entities)
	}
	if len(state.FetchedContext) != 1 {
		t.Fatalf("expected one fetch record, got %d", len(state.FetchedContext))
	}
	if len(state.KnowledgeGraph.Nodes) != 1 {
		t.Fatalf("expected one graph node, got %+v", state.KnowledgeGraph)
	}
	if state.JudgeResult == nil || state.JudgeResult.AgreementStatus != models.AgreementAgree {
		t.Fatalf("unexpected verdict: %+v", state.JudgeResult)
	}
	if len(state.History) == 0 {
		t.Fatalf("expected interaction history")
	}

	// every stage shows up in telemetry
	for _, op := range []string{"extract_entities", "fetch_context", "build_graph", "judge"} {
		if !bytes.Contains(out.Bytes(), []byte("op="+op)) {
			t.Fatalf("missing telemetry for %s: %s", op, out.String())
		}
	}
}

func TestRunEmptyInputStillProducesVerdict(t *testing.T) {
	llm := &fakeLLM{responses: []string{judgeResponse}}
	fetcher := &fakeFetcher{}
	orch := newTestOrchestrator(t, llm, fetcher, nil)

	state, err := orch.Run(context.Background(), "", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(state.Entities) != 0 || len(state.FetchedContext) != 0 {
		t.Fatalf("empty input must produce empty stages: %+v", state)
	}
	if len(state.KnowledgeGraph.Nodes) != 0 {
		t.Fatalf("expected empty graph: %+v", state.KnowledgeGraph)
	}
	if state.JudgeResult == nil {
		t.Fatalf("judgment must still run for empty input")
	}
	if fetcher.calls != 0 {
		t.Fatalf("no entities means no lookups")
	}
	// only the judge needed the model
	if llm.calls != 1 {
		t.Fatalf("expected 1 model call, got %d", llm.calls)
	}

	// the session document keeps its array shape for external readers
	doc, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	for _, field := range []string{`"entities":[]`, `"fetched_context":[]`, `"nodes":[]`} {
		if !bytes.Contains(doc, []byte(field)) {
			t.Fatalf("session document missing %s: %s", field, doc)
		}
	}
}

func TestWarmRunServedFromCache(t *testing.T) {
	llm := &fakeLLM{responses: []string{entityResponse, entityResponse, judgeResponse}}
	fetcher := &fakeFetcher{}
	orch := newTestOrchestrator(t, llm, fetcher, nil)

	cold, err := orch.Run(context.Background(), "", "Apple is doing well.")
	if err != nil {
		t.Fatalf("cold run: %v", err)
	}
	coldCalls := llm.calls

	warm, err := orch.Run(context.Background(), "", "Apple is doing well.")
	if err != nil {
		t.Fatalf("warm run: %v", err)
	}

	// only the uncached judgment hits the model again
	if llm.calls != coldCalls+1 {
		t.Fatalf("expected 1 additional model call on warm run, got %d", llm.calls-coldCalls)
	}
	if fetcher.calls != 1 {
		t.Fatalf("warm fetch must come from cache, got %d lookups", fetcher.calls)
	}
	if len(warm.Entities) != len(cold.Entities) || warm.Entities[0] != cold.Entities[0] {
		t.Fatalf("warm entities differ: %+v vs %+v", warm.Entities, cold.Entities)
	}
	if len(warm.KnowledgeGraph.Nodes) != len(cold.KnowledgeGraph.Nodes) {
		t.Fatalf("warm graph differs: %+v vs %+v", warm.KnowledgeGraph, cold.KnowledgeGraph)
	}
}

func TestMissingCredentialAbortsBeforeTelemetry(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""
	var out bytes.Buffer
	recorder := telemetry.NewRecorder(cfg.Telemetry, "console", &out)

	_, err := pipeline.NewOrchestrator(cfg, cache.New(cfg.Cache, nil),
		inmemory_repository.NewInMemoryGraphRepository(), recorder, &fakeFetcher{}, nil)
	if !errors.Is(err, models.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("no stage telemetry may be emitted before the credential check: %s", out.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	llm := &fakeLLM{responses: []string{entityResponse, entityResponse, judgeResponse}}
	orch := newTestOrchestrator(t, llm, &fakeFetcher{}, nil)

	state, err := orch.Run(context.Background(), "my-session", "Apple is doing well.")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.SessionID != "my-session" {
		t.Fatalf("expected provided session id, got %q", state.SessionID)
	}

	stored, ok := orch.Session("my-session")
	if !ok || stored.JudgeResult == nil {
		t.Fatalf("expected completed session state")
	}

	if !orch.ResetSession("my-session") {
		t.Fatalf("expected reset to succeed")
	}
	if _, ok := orch.Session("my-session"); ok {
		t.Fatalf("session must be gone after reset")
	}
	if orch.ResetSession("my-session") {
		t.Fatalf("second reset must report missing session")
	}
}

func TestRunPersistenceOutageStillCompletes(t *testing.T) {
	llm := &fakeLLM{responses: []string{entityResponse, entityResponse, judgeResponse}}
	cfg := testConfig()
	var out bytes.Buffer
	recorder := telemetry.NewRecorder(cfg.Telemetry, "console", &out)
	orch, err := pipeline.NewOrchestratorWithProvider(cfg, llm, cache.New(cfg.Cache, nil),
		downRepo{}, recorder, &fakeFetcher{}, nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	state, err := orch.Run(context.Background(), "", "Apple is doing well.")
	if err != nil {
		t.Fatalf("store outage must not fail the run: %v", err)
	}
	if len(state.KnowledgeGraph.Nodes) == 0 {
		t.Fatalf("graph must still be populated: %+v", state.KnowledgeGraph)
	}
	if state.JudgeResult == nil {
		t.Fatalf("judgment must still run")
	}

	// the outage shows up on the persistence record only; the stage stays green
	persistLine := telemetryLine(&out, "graph_persist")
	if persistLine == "" || !strings.Contains(persistLine, "outcome=error") {
		t.Fatalf("expected error record for graph_persist, got %q", persistLine)
	}
	buildLine := telemetryLine(&out, "build_graph")
	if buildLine == "" || !strings.Contains(buildLine, "outcome=success") {
		t.Fatalf("expected success record for build_graph, got %q", buildLine)
	}
}

func TestDegradedRunEmitsErrorOutcomes(t *testing.T) {
	// prose from every call: extraction and judgment both fail to parse
	llm := &fakeLLM{responses: []string{"I cannot answer in JSON today."}}
	var out bytes.Buffer
	orch := newTestOrchestrator(t, llm, &fakeFetcher{}, &out)

	state, err := orch.Run(context.Background(), "", "Apple is doing well.")
	if err != nil {
		t.Fatalf("degraded run must still complete: %v", err)
	}
	if state.JudgeResult == nil || state.JudgeResult.AgreementStatus != models.AgreementPartial {
		t.Fatalf("expected Partial fallback verdict: %+v", state.JudgeResult)
	}

	for _, op := range []string{"extract_entities", "judge"} {
		line := telemetryLine(&out, op)
		if line == "" || !strings.Contains(line, "outcome=error") {
			t.Fatalf("expected error record for %s, got %q", op, line)
		}
		if !strings.Contains(line, "error=") {
			t.Fatalf("error record for %s must carry the failure: %q", op, line)
		}
	}
	// fetch had nothing to do and stays green
	fetchLine := telemetryLine(&out, "fetch_context")
	if fetchLine == "" || !strings.Contains(fetchLine, "outcome=success") {
		t.Fatalf("expected success record for fetch_context, got %q", fetchLine)
	}
}

// telemetryLine returns the first console record for an operation.
func telemetryLine(out *bytes.Buffer, op string) string {
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "op="+op+" ") {
			return line
		}
	}
	return ""
}

type downRepo struct{}

func (downRepo) SaveKnowledgeGraph(ctx context.Context, graph models.KnowledgeGraph) error {
	return models.ErrGraphStoreUnavailable
}
