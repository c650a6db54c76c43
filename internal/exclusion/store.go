package exclusion

import (
	"context"

	id "trapper/pkg/domain"
)

// RuleStore persists the pattern tables and their audit trail.
type RuleStore interface {
	// ListActive returns active rules for both stages.
	ListActive(ctx context.Context) ([]*Rule, error)
	// Append inserts a rule and its audit row.
	Append(ctx context.Context, rule *Rule, actor string) error
	// Deactivate retires a rule (rules are never deleted) and records why.
	Deactivate(ctx context.Context, ruleID id.RuleID, actor, reason string) error
	// Changes lists the audit trail, newest first.
	Changes(ctx context.Context, limit int) ([]*RuleChange, error)
}

// BlacklistStore persists identifier values that must never act as linking
// keys (an organization's shared phone line, a placeholder email).
type BlacklistStore interface {
	IsBlacklisted(ctx context.Context, idType id.IdentifierType, normalized string) (bool, error)
	Add(ctx context.Context, idType id.IdentifierType, normalized, reason string) error
}
