package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trapper/pkg/platform/sentinel"
)

// PostgresRegistry reads the sources table.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Get(ctx context.Context, system string) (*Source, error) {
	query := `
		SELECT system, reliability, trusted, created_at, updated_at
		FROM sources
		WHERE system = $1
	`
	var s Source
	err := r.db.QueryRowContext(ctx, query, system).Scan(
		&s.System, &s.Reliability, &s.Trusted, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get source %s: %w", system, err)
	}
	return &s, nil
}

func (r *PostgresRegistry) List(ctx context.Context) ([]*Source, error) {
	query := `
		SELECT system, reliability, trusted, created_at, updated_at
		FROM sources
		ORDER BY system
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.System, &s.Reliability, &s.Trusted, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
