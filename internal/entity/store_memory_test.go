package entity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/requestcontext"
)

func newPerson(name string) *Entity {
	return &Entity{
		ID:          id.NewEntityID(),
		Kind:        id.KindPerson,
		DisplayName: name,
		Source:      "clinichq",
		Canonical:   true,
	}
}

func emailIdent(value string) Identifier {
	return Identifier{Type: id.IdentifierEmail, Raw: value, Normalized: value, Source: "clinichq", Confidence: 0.98}
}

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	jane := newPerson("Jane Doe")
	require.NoError(t, store.Create(ctx, jane, []Identifier{emailIdent("jane@x.org")}))

	records, err := store.FindByIdentifier(ctx, id.KindPerson, id.IdentifierEmail, "jane@x.org")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, jane.ID, records[0].Entity.ID)
	assert.Equal(t, "jane@x.org", records[0].Identifier(id.IdentifierEmail))

	records, err = store.FindByIdentifier(ctx, id.KindPerson, id.IdentifierEmail, "nobody@x.org")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInMemoryStore_UniquenessAmongCanonical(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Create(ctx, newPerson("Jane Doe"), []Identifier{emailIdent("jane@x.org")}))

	err := store.Create(ctx, newPerson("Jane D."), []Identifier{emailIdent("jane@x.org")})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// A conflicting create must leave no partial state behind.
	records, err := store.FindByIdentifier(ctx, id.KindPerson, id.IdentifierEmail, "jane@x.org")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestInMemoryStore_ConcurrentCreate verifies that many concurrent creation
// attempts for the same identifier produce exactly one winner; every loser
// sees ErrConflict and can retry as a match.
func TestInMemoryStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(ctx, newPerson("Jane Doe"), []Identifier{emailIdent("jane@x.org")})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load(), "exactly one create should win")
	assert.Equal(t, int32(goroutines-1), conflictCount.Load())
}

func TestInMemoryStore_AttachIdentifier(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	jane := newPerson("Jane Doe")
	require.NoError(t, store.Create(ctx, jane, []Identifier{emailIdent("jane@x.org")}))

	phone := Identifier{Type: id.IdentifierPhone, Raw: "(555) 123-4567", Normalized: "5551234567", Source: "jotform", Confidence: 1.0}
	require.NoError(t, store.AttachIdentifier(ctx, jane.ID, phone))

	// Idempotent re-attach.
	require.NoError(t, store.AttachIdentifier(ctx, jane.ID, phone))
	idents, err := store.Identifiers(ctx, jane.ID)
	require.NoError(t, err)
	assert.Len(t, idents, 2)

	// Another canonical entity cannot claim the same value.
	mary := newPerson("Mary Smith")
	require.NoError(t, store.Create(ctx, mary, nil))
	err = store.AttachIdentifier(ctx, mary.ID, phone)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestInMemoryStore_MarkMerged(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	a := newPerson("Jane Doe")
	b := newPerson("Jane M Doe")
	require.NoError(t, store.Create(ctx, a, []Identifier{emailIdent("jane@x.org")}))
	require.NoError(t, store.Create(ctx, b, nil))

	require.NoError(t, store.MarkMerged(ctx, a.ID, b.ID))

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Canonical)
	require.NotNil(t, got.MergedInto)
	assert.Equal(t, b.ID, *got.MergedInto)

	// Merged entities no longer answer identifier lookups.
	records, err := store.FindByIdentifier(ctx, id.KindPerson, id.IdentifierEmail, "jane@x.org")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Re-merging is invalid, not silent.
	err = store.MarkMerged(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestInMemoryStore_TransferIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	skel := newPerson("Roster Jane")
	skel.Skeleton = true
	target := newPerson("Jane Doe")
	require.NoError(t, store.Create(ctx, skel, []Identifier{{Type: id.IdentifierLegacyKey, Raw: "rec123", Normalized: "rec123", Source: "airtable", Confidence: 1.0}}))
	require.NoError(t, store.Create(ctx, target, []Identifier{emailIdent("jane@x.org")}))

	require.NoError(t, store.TransferIdentifiers(ctx, skel.ID, target.ID))

	idents, err := store.Identifiers(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, idents, 2)

	idents, err = store.Identifiers(ctx, skel.ID)
	require.NoError(t, err)
	assert.Empty(t, idents)
}

func TestInMemoryStore_SkeletonLifecycleQueries(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	store := NewInMemoryStore()
	older := newPerson("Old Skeleton")
	older.Skeleton = true
	newer := newPerson("New Skeleton")
	newer.Skeleton = true
	regular := newPerson("Regular")

	require.NoError(t, store.Create(requestcontext.WithTime(context.Background(), base), older, nil))
	require.NoError(t, store.Create(requestcontext.WithTime(context.Background(), base.Add(time.Hour)), newer, nil))
	require.NoError(t, store.Create(requestcontext.WithTime(context.Background(), base.Add(2*time.Hour)), regular, nil))

	ctx := context.Background()
	skeletons, err := store.ListSkeletons(ctx, 10)
	require.NoError(t, err)
	require.Len(t, skeletons, 2)
	assert.Equal(t, older.ID, skeletons[0].ID, "oldest skeleton first")

	require.NoError(t, store.Promote(ctx, older.ID))
	skeletons, err = store.ListSkeletons(ctx, 10)
	require.NoError(t, err)
	require.Len(t, skeletons, 1)
	assert.Equal(t, newer.ID, skeletons[0].ID)
}

func TestInMemoryStore_ListCanonicalPaging(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, newPerson("Person"), nil))
	}

	var seen []id.EntityID
	var cursor id.EntityID
	for {
		page, err := store.ListCanonical(ctx, id.KindPerson, cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, rec := range page {
			seen = append(seen, rec.Entity.ID)
		}
		cursor = page[len(page)-1].Entity.ID
	}
	assert.Len(t, seen, 5)

	// No duplicates across pages.
	unique := make(map[id.EntityID]bool)
	for _, e := range seen {
		unique[e] = true
	}
	assert.Len(t, unique, 5)
}
