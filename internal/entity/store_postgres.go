package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trapper/internal/platform/postgres"
	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/platform/tx"
	"trapper/pkg/requestcontext"
)

// PostgresStore persists entities and identifiers in PostgreSQL. The
// identifiers table carries a partial unique index over
// (kind, identifier_type, normalized_value) WHERE canonical, which is the
// insert-time uniqueness guarantee the resolver's race handling relies on.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, e *Entity, identifiers []Identifier) error {
	if e == nil {
		return fmt.Errorf("entity is required")
	}
	now := requestcontext.Now(ctx)

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create entity: %w", err)
	}
	defer dbtx.Rollback()

	insertEntity := `
		INSERT INTO entities (id, kind, display_name, address_norm, source, canonical, skeleton, merged_into, created_at, updated_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $8, $8)
	`
	if _, err := dbtx.ExecContext(ctx, insertEntity,
		uuid.UUID(e.ID), string(e.Kind), e.DisplayName, e.AddressNorm,
		e.Source, e.Canonical, e.Skeleton, now,
	); err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}

	for _, ident := range identifiers {
		if err := insertIdentifier(ctx, dbtx, e, ident, now); err != nil {
			return err
		}
	}

	if err := dbtx.Commit(); err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("commit create entity: %w", err)
	}
	return nil
}

func insertIdentifier(ctx context.Context, q tx.Querier, e *Entity, ident Identifier, now time.Time) error {
	insert := `
		INSERT INTO identifiers (entity_id, kind, identifier_type, raw_value, normalized_value, source, confidence, canonical, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, insert,
		uuid.UUID(e.ID), string(e.Kind), string(ident.Type), ident.Raw,
		ident.Normalized, ident.Source, ident.Confidence, e.Canonical, now,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identifier: %w", err)
	}
	return nil
}

const entityColumns = `id, kind, display_name, address_norm, source, canonical, skeleton, merged_into, created_at, updated_at, last_seen_at`

const entityColumnsQualified = `e.id, e.kind, e.display_name, e.address_norm, e.source, e.canonical, e.skeleton, e.merged_into, e.created_at, e.updated_at, e.last_seen_at`

func scanEntity(row interface{ Scan(...any) error }) (*Entity, error) {
	var (
		e      Entity
		u      uuid.UUID
		merged uuid.NullUUID
	)
	err := row.Scan(&u, &e.Kind, &e.DisplayName, &e.AddressNorm, &e.Source,
		&e.Canonical, &e.Skeleton, &merged, &e.CreatedAt, &e.UpdatedAt, &e.LastSeenAt)
	if err != nil {
		return nil, err
	}
	e.ID = id.EntityID(u)
	if merged.Valid {
		target := id.EntityID(merged.UUID)
		e.MergedInto = &target
	}
	return &e, nil
}

func (s *PostgresStore) Get(ctx context.Context, entityID id.EntityID) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	e, err := scanEntity(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(entityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) FindByIdentifier(ctx context.Context, kind id.EntityKind, idType id.IdentifierType, normalized string) ([]*Record, error) {
	if normalized == "" {
		return nil, nil
	}
	query := `
		SELECT ` + entityColumnsQualified + `
		FROM entities e
		JOIN identifiers i ON i.entity_id = e.id
		WHERE e.kind = $1 AND e.canonical AND i.identifier_type = $2 AND i.normalized_value = $3
	`
	rows, err := s.db.QueryContext(ctx, query, string(kind), string(idType), normalized)
	if err != nil {
		return nil, fmt.Errorf("find by identifier: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.loadRecords(ctx, entities)
}

func (s *PostgresStore) AttachIdentifier(ctx context.Context, entityID id.EntityID, ident Identifier) error {
	e, err := s.Get(ctx, entityID)
	if err != nil {
		return err
	}

	// Idempotent: attaching a value the entity already owns is a no-op.
	existing, err := s.Identifiers(ctx, entityID)
	if err != nil {
		return err
	}
	for _, have := range existing {
		if have.Type == ident.Type && have.Normalized == ident.Normalized {
			return nil
		}
	}

	now := requestcontext.Now(ctx)
	return insertIdentifier(ctx, tx.Resolve(ctx, s.db), e, ident, now)
}

func (s *PostgresStore) Identifiers(ctx context.Context, entityID id.EntityID) ([]Identifier, error) {
	query := `
		SELECT entity_id, identifier_type, raw_value, normalized_value, source, confidence, created_at
		FROM identifiers
		WHERE entity_id = $1
		ORDER BY created_at
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("list identifiers: %w", err)
	}
	defer rows.Close()

	var out []Identifier
	for rows.Next() {
		var (
			ident Identifier
			u     uuid.UUID
		)
		if err := rows.Scan(&u, &ident.Type, &ident.Raw, &ident.Normalized, &ident.Source, &ident.Confidence, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		ident.EntityID = id.EntityID(u)
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkMerged(ctx context.Context, from, into id.EntityID) error {
	now := requestcontext.Now(ctx)
	q := tx.Resolve(ctx, s.db)

	update := `
		UPDATE entities
		SET merged_into = $2, canonical = FALSE, updated_at = $3
		WHERE id = $1 AND merged_into IS NULL
	`
	res, err := q.ExecContext(ctx, update, uuid.UUID(from), uuid.UUID(into), now)
	if err != nil {
		return fmt.Errorf("mark merged: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark merged rows: %w", err)
	}
	if affected == 0 {
		// Either missing or already merged; distinguish for the caller.
		if _, err := s.Get(ctx, from); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}

	// Release the loser's canonical identifier claims.
	release := `UPDATE identifiers SET canonical = FALSE WHERE entity_id = $1`
	if _, err := q.ExecContext(ctx, release, uuid.UUID(from)); err != nil {
		return fmt.Errorf("release identifiers: %w", err)
	}
	return nil
}

func (s *PostgresStore) TransferIdentifiers(ctx context.Context, from, to id.EntityID) error {
	q := tx.Resolve(ctx, s.db)
	// Skip values the target (or any canonical entity) already claims; the
	// cleanup pass reconciles leftovers.
	move := `
		UPDATE identifiers i
		SET entity_id = $2,
		    canonical = (SELECT e.canonical FROM entities e WHERE e.id = $2)
		WHERE i.entity_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM identifiers other
			WHERE other.entity_id <> $1
			  AND other.kind = i.kind
			  AND other.identifier_type = i.identifier_type
			  AND other.normalized_value = i.normalized_value
			  AND other.canonical
		  )
	`
	if _, err := q.ExecContext(ctx, move, uuid.UUID(from), uuid.UUID(to)); err != nil {
		return fmt.Errorf("transfer identifiers: %w", err)
	}
	return nil
}

func (s *PostgresStore) Promote(ctx context.Context, entityID id.EntityID) error {
	update := `UPDATE entities SET skeleton = FALSE, updated_at = $2 WHERE id = $1`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, update, uuid.UUID(entityID), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("promote entity: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordSeen(ctx context.Context, entityID id.EntityID, sourceSystem string) error {
	now := requestcontext.Now(ctx)
	update := `
		UPDATE entities SET source = $2, last_seen_at = $3, updated_at = $3 WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, update, uuid.UUID(entityID), sourceSystem, now)
	if err != nil {
		return fmt.Errorf("record seen: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSkeletons(ctx context.Context, limit int) ([]*Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE skeleton AND canonical
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list skeletons: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skeleton: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListCanonical(ctx context.Context, kind id.EntityKind, after id.EntityID, limit int) ([]*Record, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE kind = $1 AND canonical AND id > $2
		ORDER BY id
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, string(kind), uuid.UUID(after), limit)
	if err != nil {
		return nil, fmt.Errorf("list canonical: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.loadRecords(ctx, entities)
}

func (s *PostgresStore) loadRecords(ctx context.Context, entities []*Entity) ([]*Record, error) {
	records := make([]*Record, 0, len(entities))
	for _, e := range entities {
		idents, err := s.Identifiers(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		records = append(records, &Record{Entity: *e, Identifiers: idents})
	}
	return records, nil
}
