package repository

import (
	"context"
	"fmt"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/models"
	"github.com/aadityasp/agreegraph/repository/inmemory_repository"
	"github.com/aadityasp/agreegraph/repository/postgres_repository"
)

// GraphRepository defines the interface for knowledge graph persistence.
// Nodes are upserted by name, relationships by the (from, to, type) triple;
// re-applying the same graph produces no duplicates. Dangling edges are
// accepted: resolution happens at upsert time, not validation time.
type GraphRepository interface {
	SaveKnowledgeGraph(ctx context.Context, graph models.KnowledgeGraph) error
}

type RepoType string

const (
	RepoTypePostgres RepoType = "postgres"
	RepoTypeMemory   RepoType = "memory"
)

// NewGraphRepository creates a graph store from configuration.
func NewGraphRepository(ctx context.Context, cfg config.StorageConfig) (GraphRepository, error) {
	switch RepoType(cfg.GraphBackend) {
	case RepoTypePostgres:
		db, err := postgres_repository.Conn(ctx, cfg.Postgres.DSN(), cfg.Postgres.Timeout)
		if err != nil {
			return nil, err
		}
		return postgres_repository.NewPostgresGraphRepository(db), nil
	case RepoTypeMemory, "":
		return inmemory_repository.NewInMemoryGraphRepository(), nil
	}
	return nil, fmt.Errorf("invalid graph repository type: %s", cfg.GraphBackend)
}
