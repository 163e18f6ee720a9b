package models

import (
	"errors"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when the LLM credential is not configured.
// It is the only error class that aborts a pipeline run before any stage executes.
var ErrMissingAPIKey = errors.New("llm api key not configured")

// ErrGraphStoreUnavailable is returned by graph repositories when the backing
// store cannot be reached. Callers treat it as a degraded, non-fatal condition.
var ErrGraphStoreUnavailable = errors.New("graph store unavailable")

// Entity is a named thing extracted from text. Type is open vocabulary
// (not restricted to a closed enum); normalization happens on merge only.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NormalizedName is the case-insensitive key used for entity dedup and cache keys.
func (e Entity) NormalizedName() string {
	return NormalizeName(e.Name)
}

// NormalizeName lowercases and trims an entity name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// WikipediaSummary carries the encyclopedia lookup for an entity.
type WikipediaSummary struct {
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// NewsArticle is a single news headline for an entity.
type NewsArticle struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
}

// FetchRecord is the enrichment result for one entity. A record always exists
// for every requested entity; Wikipedia is nil and News empty when lookups fail,
// so downstream stages always see a stable shape.
type FetchRecord struct {
	Entity    string            `json:"entity"`
	Wikipedia *WikipediaSummary `json:"wikipedia"`
	News      []NewsArticle     `json:"news"`
}

// GraphNode is a knowledge graph node, unique by Name.
type GraphNode struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// GraphEdge is a typed directed relationship between two nodes, referenced by
// name. Edges are weak references: a dangling edge is tolerated and resolved by
// the store's upsert at persistence time.
type GraphEdge struct {
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
	Type     string `json:"type"`
}

// KnowledgeGraph is the deduplicated node/edge set built by graph construction.
type KnowledgeGraph struct {
	Nodes         []GraphNode `json:"nodes"`
	Relationships []GraphEdge `json:"relationships"`
}

// AgreementStatus is the three-valued cross-source verdict.
type AgreementStatus string

const (
	AgreementAgree    AgreementStatus = "Agree"
	AgreementDisagree AgreementStatus = "Disagree"
	AgreementPartial  AgreementStatus = "Partial"
)

// JudgeResult is the final agreement verdict produced once per run.
type JudgeResult struct {
	AgreementStatus   AgreementStatus `json:"agreement_status"`
	Summary           string          `json:"summary"`
	SearchSuggestions []string        `json:"search_suggestions"`
}

// Interaction is one entry of a session's interaction history.
type Interaction struct {
	Action string    `json:"action"`
	Agent  string    `json:"agent,omitempty"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// PipelineState is the single mutable record threaded through all stages.
// Each field is written by exactly one stage; the orchestrator merges stage
// output between stage invocations, never concurrently.
type PipelineState struct {
	SessionID      string         `json:"session_id"`
	InputText      string         `json:"input_text"`
	Entities       []Entity       `json:"entities"`
	FetchedContext []FetchRecord  `json:"fetched_context"`
	KnowledgeGraph KnowledgeGraph `json:"knowledge_graph"`
	JudgeResult    *JudgeResult   `json:"judge_result"`
	History        []Interaction  `json:"interaction_history,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AddHistory appends an interaction history entry.
func (s *PipelineState) AddHistory(action, agent, detail string) {
	s.History = append(s.History, Interaction{
		Action: action,
		Agent:  agent,
		Detail: detail,
		At:     time.Now().UTC(),
	})
}
