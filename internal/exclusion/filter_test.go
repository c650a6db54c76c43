package exclusion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trapper/pkg/domain"
)

func seedRule(t *testing.T, store RuleStore, stage Stage, match MatchType, pattern string, rep *id.EntityID) *Rule {
	t.Helper()
	rule := &Rule{
		ID:             id.NewRuleID(),
		Stage:          stage,
		Match:          match,
		Pattern:        pattern,
		Representative: rep,
		Active:         true,
	}
	require.NoError(t, store.Append(context.Background(), rule, "test"))
	return rule
}

func TestFilterClassify(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRuleStore()

	rep := id.NewEntityID()
	seedRule(t, store, StageOrganization, MatchSubstring, "rescue", nil)
	seedRule(t, store, StageOrganization, MatchExact, "unknown", nil)
	seedRule(t, store, StageOrganization, MatchPrefix, "test ", nil)
	seedRule(t, store, StageOrganization, MatchSubstring, "feline friends", &rep)
	seedRule(t, store, StageInternal, MatchRegex, `^staff[0-9]+$`, nil)

	filter, err := NewFilter(store)
	require.NoError(t, err)

	t.Run("organization substring", func(t *testing.T) {
		c, err := filter.Classify(ctx, "Happy Paws Rescue")
		require.NoError(t, err)
		assert.True(t, c.Excluded)
		assert.Equal(t, StageOrganization, c.Stage)
		assert.Nil(t, c.Representative)
	})

	t.Run("placeholder exact", func(t *testing.T) {
		c, err := filter.Classify(ctx, "  Unknown ")
		require.NoError(t, err)
		assert.True(t, c.Excluded)
	})

	t.Run("prefix", func(t *testing.T) {
		c, err := filter.Classify(ctx, "Test Person")
		require.NoError(t, err)
		assert.True(t, c.Excluded)
	})

	t.Run("representative redirect", func(t *testing.T) {
		c, err := filter.Classify(ctx, "Feline Friends of Oakdale")
		require.NoError(t, err)
		assert.True(t, c.Excluded)
		require.NotNil(t, c.Representative)
		assert.Equal(t, rep, *c.Representative)
	})

	t.Run("internal regex", func(t *testing.T) {
		c, err := filter.Classify(ctx, "staff42")
		require.NoError(t, err)
		assert.True(t, c.Excluded)
		assert.Equal(t, StageInternal, c.Stage)
	})

	t.Run("real person passes", func(t *testing.T) {
		c, err := filter.Classify(ctx, "Jane Doe")
		require.NoError(t, err)
		assert.False(t, c.Excluded)
	})

	// The observed failure mode: a legitimate surname colliding with an
	// exclusion substring. The fix is operational (amend the rule), so the
	// filter must pick up a deactivation without a restart.
	t.Run("deactivation takes effect after invalidate", func(t *testing.T) {
		rule := seedRule(t, store, StageOrganization, MatchSubstring, "church", nil)
		filter.Invalidate()

		c, err := filter.Classify(ctx, "Amanda Church")
		require.NoError(t, err)
		assert.True(t, c.Excluded)

		require.NoError(t, store.Deactivate(ctx, rule.ID, "ops", "surname collision"))
		filter.Invalidate()

		c, err = filter.Classify(ctx, "Amanda Church")
		require.NoError(t, err)
		assert.False(t, c.Excluded)
	})

	t.Run("empty label is not excluded", func(t *testing.T) {
		c, err := filter.Classify(ctx, "   ")
		require.NoError(t, err)
		assert.False(t, c.Excluded)
	})
}

func TestFilterTTLReload(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRuleStore()
	filter, err := NewFilter(store, WithReloadTTL(10*time.Millisecond))
	require.NoError(t, err)

	c, err := filter.Classify(ctx, "Happy Paws Rescue")
	require.NoError(t, err)
	assert.False(t, c.Excluded)

	seedRule(t, store, StageOrganization, MatchSubstring, "rescue", nil)
	time.Sleep(20 * time.Millisecond)

	c, err = filter.Classify(ctx, "Happy Paws Rescue")
	require.NoError(t, err)
	assert.True(t, c.Excluded, "new rule should be picked up after TTL expiry")
}

func TestRuleAuditTrail(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRuleStore()

	rule := seedRule(t, store, StageOrganization, MatchSubstring, "shelter", nil)
	require.NoError(t, store.Deactivate(ctx, rule.ID, "ops", "too broad"))

	changes, err := store.Changes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "deactivate", changes[0].Action)
	assert.Equal(t, "too broad", changes[0].Detail)
	assert.Equal(t, "create", changes[1].Action)
}

func TestBlacklistStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryBlacklistStore()

	listed, err := store.IsBlacklisted(ctx, id.IdentifierPhone, "5550001111")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, store.Add(ctx, id.IdentifierPhone, "5550001111", "clinic front desk line"))

	listed, err = store.IsBlacklisted(ctx, id.IdentifierPhone, "5550001111")
	require.NoError(t, err)
	assert.True(t, listed)

	// Empty values are never blacklisted; absent is absent.
	listed, err = store.IsBlacklisted(ctx, id.IdentifierPhone, "")
	require.NoError(t, err)
	assert.False(t, listed)
}
