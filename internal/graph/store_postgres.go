package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/tx"
	"trapper/pkg/requestcontext"
)

// PostgresEdgeStore persists identity edges in PostgreSQL.
type PostgresEdgeStore struct {
	db *sql.DB
}

func NewPostgresEdgeStore(db *sql.DB) *PostgresEdgeStore {
	return &PostgresEdgeStore{db: db}
}

func (s *PostgresEdgeStore) Append(ctx context.Context, edge Edge) error {
	insert := `
		INSERT INTO identity_edges (kind, from_id, to_id, edge_type, confidence, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	createdAt := edge.CreatedAt
	if createdAt.IsZero() {
		createdAt = requestcontext.Now(ctx)
	}
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, insert,
		string(edge.Kind), uuid.UUID(edge.From), uuid.UUID(edge.To),
		string(edge.Type), edge.Confidence, edge.Note, createdAt,
	)
	if err != nil {
		return fmt.Errorf("append identity edge: %w", err)
	}
	return nil
}

func (s *PostgresEdgeStore) MergedInto(ctx context.Context, entityID id.EntityID) (*id.EntityID, error) {
	query := `
		SELECT to_id FROM identity_edges
		WHERE from_id = $1 AND edge_type = $2
		ORDER BY created_at
		LIMIT 1
	`
	var u uuid.UUID
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(entityID), string(id.EdgeMergedInto)).Scan(&u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("merged-into lookup: %w", err)
	}
	target := id.EntityID(u)
	return &target, nil
}

func (s *PostgresEdgeStore) MergedFrom(ctx context.Context, entityID id.EntityID) ([]id.EntityID, error) {
	query := `
		SELECT from_id FROM identity_edges
		WHERE to_id = $1 AND edge_type = $2
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(entityID), string(id.EdgeMergedInto))
	if err != nil {
		return nil, fmt.Errorf("merged-from lookup: %w", err)
	}
	defer rows.Close()

	var out []id.EntityID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan merged-from: %w", err)
		}
		out = append(out, id.EntityID(u))
	}
	return out, rows.Err()
}

func (s *PostgresEdgeStore) Edges(ctx context.Context, entityID id.EntityID) ([]Edge, error) {
	query := `
		SELECT kind, from_id, to_id, edge_type, confidence, note, created_at
		FROM identity_edges
		WHERE from_id = $1 OR to_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var (
			e        Edge
			from, to uuid.UUID
		)
		if err := rows.Scan(&e.Kind, &from, &to, &e.Type, &e.Confidence, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.From = id.EntityID(from)
		e.To = id.EntityID(to)
		out = append(out, e)
	}
	return out, rows.Err()
}
