package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/agents"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/provider"
	"github.com/aadityasp/agreegraph/repository"
	"github.com/aadityasp/agreegraph/tools/webfetch"
)

// State names the pipeline stage currently executing for a session.
type State string

const (
	StateEntityExtraction  State = "entity_extraction"
	StateContextFetch      State = "context_fetch"
	StateGraphConstruction State = "graph_construction"
	StateJudgment          State = "judgment"
	StateDone              State = "done"
)

// Orchestrator drives a run through the four stages in fixed order. Stages
// never touch shared state concurrently: each stage's output is merged into
// the session state between invocations, and every stage call is wrapped in
// telemetry. Stage-level failures degrade inside the stage and surface as
// error-outcome telemetry records; only the missing-credential configuration
// error aborts, and it is surfaced at construction time before any stage
// telemetry exists.
type Orchestrator struct {
	cfg      *config.Config
	entity   *agents.EntityAgent
	fetch    *agents.FetchAgent
	graph    *agents.GraphAgent
	judge    *agents.JudgeAgent
	recorder *telemetry.Recorder
	cache    cache.Cache
	sessions *SessionStore
	logger   *log.Logger
}

func NewOrchestrator(cfg *config.Config, c cache.Cache, repo repository.GraphRepository, recorder *telemetry.Recorder, fetcher webfetch.Fetcher, logger *log.Logger) (*Orchestrator, error) {
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return NewOrchestratorWithProvider(cfg, llm, c, repo, recorder, fetcher, logger)
}

// NewOrchestratorWithProvider wires the orchestrator around an existing LLM
// provider instead of building one from configuration.
func NewOrchestratorWithProvider(cfg *config.Config, llm provider.Provider, c cache.Cache, repo repository.GraphRepository, recorder *telemetry.Recorder, fetcher webfetch.Fetcher, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if fetcher == nil {
		fetcher = webfetch.NewClient(cfg.Fetch, nil)
	}

	entity := agents.NewEntityAgent(llm, c, cfg.LLM, cfg.Agents, cfg.Cache, nil)
	return &Orchestrator{
		cfg:      cfg,
		entity:   entity,
		fetch:    agents.NewFetchAgent(fetcher, c, cfg.Cache, nil),
		graph:    agents.NewGraphAgent(llm, entity, repo, c, recorder, cfg.LLM, cfg.Cache, nil),
		judge:    agents.NewJudgeAgent(llm, cfg.LLM, nil),
		recorder: recorder,
		cache:    c,
		sessions: NewSessionStore(),
		logger:   logger,
	}, nil
}

// Run executes the full pipeline for text under the given session. A blank
// sessionID starts a fresh session. The returned state is always complete:
// empty input flows through every stage and still produces a verdict.
func (o *Orchestrator) Run(ctx context.Context, sessionID, text string) (*models.PipelineState, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	state := &models.PipelineState{
		SessionID: sessionID,
		InputText: text,
		CreatedAt: time.Now().UTC(),
	}
	state.AddHistory("run_started", "", fmt.Sprintf("input length %d", len(text)))
	o.sessions.Save(state)

	current := StateEntityExtraction
	for current != StateDone {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		// Stage closures merge output into the state before returning the
		// absorbed degradation; the recorder marks it as an error outcome
		// while the run continues.
		switch current {
		case StateEntityExtraction:
			extra := telemetry.Fields{}
			_ = o.recorder.Record(ctx, sessionID, "entity_agent", "extract_entities", extra, func(ctx context.Context) error {
				var stageErr error
				state.Entities, stageErr = o.entity.Extract(ctx, text, extra)
				return stageErr
			})
			state.AddHistory("entities_extracted", "entity_agent", fmt.Sprintf("%d entities", len(state.Entities)))
			current = StateContextFetch

		case StateContextFetch:
			extra := telemetry.Fields{}
			_ = o.recorder.Record(ctx, sessionID, "fetch_agent", "fetch_context", extra, func(ctx context.Context) error {
				state.FetchedContext = o.fetch.Fetch(ctx, state.Entities, extra)
				return nil
			})
			state.AddHistory("context_fetched", "fetch_agent", fmt.Sprintf("%d records", len(state.FetchedContext)))
			current = StateGraphConstruction

		case StateGraphConstruction:
			extra := telemetry.Fields{}
			_ = o.recorder.Record(ctx, sessionID, "graph_agent", "build_graph", extra, func(ctx context.Context) error {
				var stageErr error
				state.KnowledgeGraph, stageErr = o.graph.Build(ctx, sessionID, state.Entities, state.FetchedContext, extra)
				return stageErr
			})
			state.AddHistory("graph_built", "graph_agent",
				fmt.Sprintf("%d nodes, %d relationships", len(state.KnowledgeGraph.Nodes), len(state.KnowledgeGraph.Relationships)))
			current = StateJudgment

		case StateJudgment:
			extra := telemetry.Fields{}
			_ = o.recorder.Record(ctx, sessionID, "judge_agent", "judge", extra, func(ctx context.Context) error {
				result, stageErr := o.judge.Judge(ctx, state, extra)
				state.JudgeResult = &result
				return stageErr
			})
			state.AddHistory("judged", "judge_agent", string(state.JudgeResult.AgreementStatus))
			current = StateDone
		}
		o.sessions.Save(state)
	}

	state.AddHistory("run_completed", "", "")
	o.sessions.Save(state)
	return state, nil
}

// Session returns the stored state for a session ID.
func (o *Orchestrator) Session(sessionID string) (*models.PipelineState, bool) {
	return o.sessions.Get(sessionID)
}

// ResetSession drops a session's state. Cached fetches and the durable graph
// survive the reset: they are keyed by content, not session.
func (o *Orchestrator) ResetSession(sessionID string) bool {
	return o.sessions.Delete(sessionID)
}

// CacheStats exposes the shared cache accounting.
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.Stats()
}
