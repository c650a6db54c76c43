package resolve

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

// PostgresDecisionStore persists the decision log in PostgreSQL.
type PostgresDecisionStore struct {
	db *sql.DB
}

func NewPostgresDecisionStore(db *sql.DB) *PostgresDecisionStore {
	return &PostgresDecisionStore{db: db}
}

const decisionColumns = `id, decision_type, entity_id, matched_entity_id, confidence,
	source_system, source_record_id, input_name, input_email, input_phone,
	evidence, review_status, reviewed_by, reviewed_at, created_at`

func (s *PostgresDecisionStore) Append(ctx context.Context, d *MatchDecision) error {
	insert := `
		INSERT INTO match_decisions (` + decisionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = requestcontext.Now(ctx)
		d.CreatedAt = createdAt
	}
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, insert,
		uuid.UUID(d.ID), string(d.Type),
		uuidOrNil(d.EntityID), uuidOrNil(d.MatchedEntityID),
		d.Confidence, d.SourceSystem, d.SourceRecordID,
		d.InputName, d.InputEmail, d.InputPhone,
		nullableJSON(d.Evidence), nullableString(string(d.ReviewStatus)),
		nullableString(d.ReviewedBy), d.ReviewedAt, createdAt,
	)
	if err != nil {
		return fmt.Errorf("append match decision: %w", err)
	}
	return nil
}

func (s *PostgresDecisionStore) Get(ctx context.Context, decisionID id.DecisionID) (*MatchDecision, error) {
	query := `SELECT ` + decisionColumns + ` FROM match_decisions WHERE id = $1`
	d, err := scanDecision(s.db.QueryRowContext(ctx, query, uuid.UUID(decisionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get match decision: %w", err)
	}
	return d, nil
}

func (s *PostgresDecisionStore) ListByStatus(ctx context.Context, status ReviewStatus, limit int) ([]*MatchDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM match_decisions
		WHERE review_status = $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list match decisions: %w", err)
	}
	defer rows.Close()

	var out []*MatchDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresDecisionStore) UpdateReview(ctx context.Context, decisionID id.DecisionID, status ReviewStatus, actor string) error {
	update := `
		UPDATE match_decisions
		SET review_status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND review_status = $5
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, update,
		uuid.UUID(decisionID), string(status), actor, requestcontext.Now(ctx), string(ReviewPending),
	)
	if err != nil {
		return fmt.Errorf("update decision review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update decision review: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, decisionID); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*MatchDecision, error) {
	var (
		d                  MatchDecision
		decisionType       string
		entityID, matched  uuid.NullUUID
		evidence           sql.NullString
		status, reviewedBy sql.NullString
		reviewedAt         sql.NullTime
	)
	err := row.Scan(
		(*uuid.UUID)(&d.ID), &decisionType, &entityID, &matched,
		&d.Confidence, &d.SourceSystem, &d.SourceRecordID,
		&d.InputName, &d.InputEmail, &d.InputPhone,
		&evidence, &status, &reviewedBy, &reviewedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Type = id.DecisionType(decisionType)
	if entityID.Valid {
		e := id.EntityID(entityID.UUID)
		d.EntityID = &e
	}
	if matched.Valid {
		m := id.EntityID(matched.UUID)
		d.MatchedEntityID = &m
	}
	if evidence.Valid {
		d.Evidence = []byte(evidence.String)
	}
	if status.Valid {
		d.ReviewStatus = ReviewStatus(status.String)
	}
	if reviewedBy.Valid {
		d.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		d.ReviewedAt = &t
	}
	return &d, nil
}

func uuidOrNil(e *id.EntityID) any {
	if e == nil {
		return nil
	}
	return uuid.UUID(*e)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
