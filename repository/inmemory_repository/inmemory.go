package inmemory_repository

import (
	"context"
	"sync"

	"github.com/aadityasp/agreegraph/models"
)

// InMemoryGraphRepository keeps the knowledge graph in process memory.
// It mirrors the durable store's upsert semantics so the pipeline behaves
// identically regardless of backend.
type InMemoryGraphRepository struct {
	mu    sync.RWMutex
	nodes map[string]models.GraphNode
	rels  map[relKey]models.GraphEdge
}

type relKey struct {
	from, to, typ string
}

func NewInMemoryGraphRepository() *InMemoryGraphRepository {
	return &InMemoryGraphRepository{
		nodes: make(map[string]models.GraphNode),
		rels:  make(map[relKey]models.GraphEdge),
	}
}

func (r *InMemoryGraphRepository) SaveKnowledgeGraph(_ context.Context, graph models.KnowledgeGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, node := range graph.Nodes {
		if existing, ok := r.nodes[node.Name]; ok && node.Summary == "" {
			node.Summary = existing.Summary
		}
		r.nodes[node.Name] = node
	}
	for _, rel := range graph.Relationships {
		key := relKey{from: rel.FromNode, to: rel.ToNode, typ: rel.Type}
		if _, ok := r.rels[key]; !ok {
			r.rels[key] = rel
		}
	}
	return nil
}

// Nodes returns a snapshot of all stored nodes.
func (r *InMemoryGraphRepository) Nodes() []models.GraphNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.GraphNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	return out
}

// Relationships returns a snapshot of all stored relationships.
func (r *InMemoryGraphRepository) Relationships() []models.GraphEdge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.GraphEdge, 0, len(r.rels))
	for _, e := range r.rels {
		out = append(out, e)
	}
	return out
}
