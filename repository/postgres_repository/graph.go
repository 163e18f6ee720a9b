package postgres_repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aadityasp/agreegraph/models"
)

type PostgresGraphRepository struct {
	db *sql.DB
}

func NewPostgresGraphRepository(db *sql.DB) *PostgresGraphRepository {
	return &PostgresGraphRepository{db: db}
}

// SaveKnowledgeGraph upserts all nodes and relationships in one transaction.
// An empty incoming summary never overwrites a stored one.
func (r *PostgresGraphRepository) SaveKnowledgeGraph(ctx context.Context, graph models.KnowledgeGraph) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, node := range graph.Nodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (name, type, summary, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (name) DO UPDATE SET
				type = EXCLUDED.type,
				summary = CASE WHEN EXCLUDED.summary <> '' THEN EXCLUDED.summary ELSE graph_nodes.summary END,
				updated_at = NOW()
		`, node.Name, node.Type, node.Summary)
		if err != nil {
			return fmt.Errorf("upserting node %q: %w", node.Name, err)
		}
	}

	for _, rel := range graph.Relationships {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_relationships (from_node, to_node, type, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (from_node, to_node, type) DO NOTHING
		`, rel.FromNode, rel.ToNode, rel.Type)
		if err != nil {
			return fmt.Errorf("upserting relationship %q-[%s]->%q: %w", rel.FromNode, rel.Type, rel.ToNode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *PostgresGraphRepository) Close() error {
	return r.db.Close()
}
