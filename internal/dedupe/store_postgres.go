package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/platform/tx"
	"trapper/pkg/requestcontext"
)

// PostgresStore persists duplicate candidates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const candidateColumns = `id, kind, entity_a, entity_b, tier, confidence, reason,
	status, resolved_by, resolved_at, created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, c *Candidate) error {
	// Re-detection refreshes pending rows only: an operator disposition is
	// authoritative and never reopened by a later scan.
	upsert := `
		INSERT INTO duplicate_candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL, $9, $9)
		ON CONFLICT (kind, entity_a, entity_b) DO UPDATE SET
			tier = LEAST(duplicate_candidates.tier, EXCLUDED.tier),
			confidence = GREATEST(duplicate_candidates.confidence, EXCLUDED.confidence),
			reason = CASE WHEN EXCLUDED.tier < duplicate_candidates.tier
				THEN EXCLUDED.reason ELSE duplicate_candidates.reason END,
			updated_at = EXCLUDED.updated_at
		WHERE duplicate_candidates.status = 'pending'
	`
	now := requestcontext.Now(ctx)
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, upsert,
		uuid.UUID(c.ID), string(c.Kind),
		uuid.UUID(c.EntityA), uuid.UUID(c.EntityB),
		int(c.Tier), c.Confidence, c.Reason, string(c.Status), now,
	)
	if err != nil {
		return fmt.Errorf("upsert duplicate candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, candidateID id.CandidateID) (*Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM duplicate_candidates WHERE id = $1`
	c, err := scanCandidate(s.db.QueryRowContext(ctx, query, uuid.UUID(candidateID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get duplicate candidate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Candidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM duplicate_candidates
		WHERE status = $1
		ORDER BY tier, confidence DESC, created_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list duplicate candidates: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan duplicate candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, candidateID id.CandidateID, status Status, actor string) error {
	update := `
		UPDATE duplicate_candidates
		SET status = $2, resolved_by = $3, resolved_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, update,
		uuid.UUID(candidateID), string(status), actor, requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("update duplicate candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update duplicate candidate: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, candidateID); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*Candidate, error) {
	var (
		c          Candidate
		a, b       uuid.UUID
		tier       int
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		(*uuid.UUID)(&c.ID), &c.Kind, &a, &b, &tier, &c.Confidence, &c.Reason,
		&c.Status, &resolvedBy, &resolvedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.EntityA = id.EntityID(a)
	c.EntityB = id.EntityID(b)
	c.Tier = id.DuplicateTier(tier)
	if resolvedBy.Valid {
		c.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}
