package exclusion

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "trapper/pkg/domain"
	"trapper/pkg/requestcontext"
)

// PostgresRuleStore persists exclusion rules and their audit trail.
type PostgresRuleStore struct {
	db *sql.DB
}

func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) ListActive(ctx context.Context) ([]*Rule, error) {
	query := `
		SELECT id, stage, match_type, pattern, representative_id, active, note, created_at, updated_at
		FROM exclusion_rules
		WHERE active
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active exclusion rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		var (
			r     Rule
			ruleU uuid.UUID
			repU  uuid.NullUUID
		)
		if err := rows.Scan(&ruleU, &r.Stage, &r.Match, &r.Pattern, &repU, &r.Active, &r.Note, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan exclusion rule: %w", err)
		}
		r.ID = id.RuleID(ruleU)
		if repU.Valid {
			rep := id.EntityID(repU.UUID)
			r.Representative = &rep
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresRuleStore) Append(ctx context.Context, rule *Rule, actor string) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	now := requestcontext.Now(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append rule: %w", err)
	}
	defer tx.Rollback()

	var rep uuid.NullUUID
	if rule.Representative != nil {
		rep = uuid.NullUUID{UUID: uuid.UUID(*rule.Representative), Valid: true}
	}
	insertRule := `
		INSERT INTO exclusion_rules (id, stage, match_type, pattern, representative_id, active, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	if _, err := tx.ExecContext(ctx, insertRule,
		uuid.UUID(rule.ID), string(rule.Stage), string(rule.Match), rule.Pattern,
		rep, rule.Active, rule.Note, now,
	); err != nil {
		return fmt.Errorf("insert exclusion rule: %w", err)
	}

	insertChange := `
		INSERT INTO exclusion_rule_changes (rule_id, action, actor, detail, changed_at)
		VALUES ($1, 'create', $2, $3, $4)
	`
	detail := string(rule.Stage) + " " + string(rule.Match) + " " + rule.Pattern
	if _, err := tx.ExecContext(ctx, insertChange, uuid.UUID(rule.ID), actor, detail, now); err != nil {
		return fmt.Errorf("insert rule audit row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) Deactivate(ctx context.Context, ruleID id.RuleID, actor, reason string) error {
	now := requestcontext.Now(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate rule: %w", err)
	}
	defer tx.Rollback()

	update := `
		UPDATE exclusion_rules SET active = FALSE, updated_at = $2 WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update, uuid.UUID(ruleID), now); err != nil {
		return fmt.Errorf("deactivate exclusion rule: %w", err)
	}

	insertChange := `
		INSERT INTO exclusion_rule_changes (rule_id, action, actor, detail, changed_at)
		VALUES ($1, 'deactivate', $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, insertChange, uuid.UUID(ruleID), actor, reason, now); err != nil {
		return fmt.Errorf("insert rule audit row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deactivate rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) Changes(ctx context.Context, limit int) ([]*RuleChange, error) {
	query := `
		SELECT rule_id, action, actor, detail, changed_at
		FROM exclusion_rule_changes
		ORDER BY changed_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list rule changes: %w", err)
	}
	defer rows.Close()

	var out []*RuleChange
	for rows.Next() {
		var (
			c RuleChange
			u uuid.UUID
		)
		if err := rows.Scan(&u, &c.Action, &c.Actor, &c.Detail, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan rule change: %w", err)
		}
		c.RuleID = id.RuleID(u)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// PostgresBlacklistStore persists blacklisted identifier values.
type PostgresBlacklistStore struct {
	db *sql.DB
}

func NewPostgresBlacklistStore(db *sql.DB) *PostgresBlacklistStore {
	return &PostgresBlacklistStore{db: db}
}

func (s *PostgresBlacklistStore) IsBlacklisted(ctx context.Context, idType id.IdentifierType, normalized string) (bool, error) {
	if normalized == "" {
		return false, nil
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM identifier_blacklist
			WHERE identifier_type = $1 AND normalized_value = $2
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, string(idType), normalized).Scan(&exists); err != nil {
		return false, fmt.Errorf("check identifier blacklist: %w", err)
	}
	return exists, nil
}

func (s *PostgresBlacklistStore) Add(ctx context.Context, idType id.IdentifierType, normalized, reason string) error {
	query := `
		INSERT INTO identifier_blacklist (identifier_type, normalized_value, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier_type, normalized_value) DO UPDATE SET reason = EXCLUDED.reason
	`
	if _, err := s.db.ExecContext(ctx, query, string(idType), normalized, reason, requestcontext.Now(ctx)); err != nil {
		return fmt.Errorf("add blacklist entry: %w", err)
	}
	return nil
}
