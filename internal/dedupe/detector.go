package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"trapper/internal/dedupe/metrics"
	"trapper/internal/entity"
	"trapper/internal/graph"
	"trapper/internal/normalize"
	"trapper/internal/score"
	id "trapper/pkg/domain"
)

// Config carries the detector's scan parameters.
type Config struct {
	// PageSize is how many canonical entities one store page fetches.
	PageSize int
	// MaxEntities bounds one run; 0 scans everything.
	MaxEntities int
	// Workers bounds concurrent bucket evaluation.
	Workers int
	// NameSimThreshold splits tier 2 (same person, misspelled) from tier 3
	// (household sharing a phone).
	NameSimThreshold float64
	// MaxBucket skips identifier values shared by more entities than this;
	// such values are shared lines or placeholders, blacklist material
	// rather than duplicate evidence.
	MaxBucket int
}

func DefaultConfig() Config {
	return Config{
		PageSize:         500,
		Workers:          4,
		NameSimThreshold: 0.50,
		MaxBucket:        25,
	}
}

// Stats summarizes one detection run.
type Stats struct {
	Scanned     int
	PairsByTier [5]int
}

// Pairs is the total number of surfaced pairs.
func (s Stats) Pairs() int {
	var n int
	for _, c := range s.PairsByTier {
		n += c
	}
	return n
}

// Detector scans canonical entities for probable duplicates the online path
// missed. It only writes review candidates; it never merges.
type Detector struct {
	entities entity.Store
	edges    graph.EdgeStore
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cfg      Config
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithLogger sets the detector logger.
func WithLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger }
}

// WithConfig overrides the default scan parameters.
func WithConfig(cfg Config) DetectorOption {
	return func(d *Detector) { d.cfg = cfg }
}

// WithMetrics sets the detection metrics.
func WithMetrics(m *metrics.Metrics) DetectorOption {
	return func(d *Detector) { d.metrics = m }
}

// NewDetector constructs a duplicate detector.
func NewDetector(entities entity.Store, edges graph.EdgeStore, store Store, opts ...DetectorOption) (*Detector, error) {
	if entities == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if edges == nil {
		return nil, fmt.Errorf("edge store is required")
	}
	if store == nil {
		return nil, fmt.Errorf("candidate store is required")
	}
	d := &Detector{
		entities: entities,
		edges:    edges,
		store:    store,
		logger:   slog.Default(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.PageSize <= 0 {
		d.cfg.PageSize = DefaultConfig().PageSize
	}
	if d.cfg.Workers <= 0 {
		d.cfg.Workers = DefaultConfig().Workers
	}
	return d, nil
}

// Run scans canonical entities of one kind and upserts duplicate candidates.
// Buckets are evaluated concurrently; cancellation stops the run with
// whatever pairs were already written.
func (d *Detector) Run(ctx context.Context, kind id.EntityKind) (Stats, error) {
	start := time.Now()
	var stats Stats

	records, err := d.scan(ctx, kind)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(records)

	emailBuckets := make(map[string][]*entity.Record)
	phoneBuckets := make(map[string][]*entity.Record)
	nameBuckets := make(map[string][]*entity.Record)
	for _, rec := range records {
		if v := rec.Identifier(id.IdentifierEmail); v != "" {
			emailBuckets[v] = append(emailBuckets[v], rec)
		}
		if v := rec.Identifier(id.IdentifierPhone); v != "" {
			phoneBuckets[v] = append(phoneBuckets[v], rec)
		}
		if k := normalize.NameKey(rec.Entity.DisplayName); k != "" {
			nameBuckets[k] = append(nameBuckets[k], rec)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	results := make(chan id.DuplicateTier, d.cfg.Workers*4)

	counting := make(chan struct{})
	go func() {
		defer close(counting)
		for tier := range results {
			stats.PairsByTier[tier]++
			d.metrics.IncrementPair(int(tier))
		}
	}()

	for value, bucket := range emailBuckets {
		value, bucket := value, bucket
		if d.skipBucket(id.IdentifierEmail, value, bucket) {
			continue
		}
		g.Go(func() error { return d.emailBucket(gctx, kind, value, bucket, results) })
	}
	for value, bucket := range phoneBuckets {
		value, bucket := value, bucket
		if d.skipBucket(id.IdentifierPhone, value, bucket) {
			continue
		}
		g.Go(func() error { return d.phoneBucket(gctx, kind, value, bucket, results) })
	}
	for _, bucket := range nameBuckets {
		bucket := bucket
		if len(bucket) < 2 || len(bucket) > d.cfg.MaxBucket {
			continue
		}
		g.Go(func() error { return d.nameBucket(gctx, kind, bucket, results) })
	}

	err = g.Wait()
	close(results)
	<-counting
	d.metrics.ObserveScanDuration(time.Since(start))
	if err != nil {
		return stats, err
	}

	d.logger.Info("duplicate scan complete",
		"kind", kind.String(),
		"scanned", stats.Scanned,
		"pairs", stats.Pairs(),
	)
	return stats, nil
}

// scan pages through canonical entities up to the per-run bound.
func (d *Detector) scan(ctx context.Context, kind id.EntityKind) ([]*entity.Record, error) {
	var (
		records []*entity.Record
		cursor  id.EntityID
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := d.entities.ListCanonical(ctx, kind, cursor, d.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return records, nil
		}
		records = append(records, page...)
		cursor = page[len(page)-1].Entity.ID
		if d.cfg.MaxEntities > 0 && len(records) >= d.cfg.MaxEntities {
			return records[:d.cfg.MaxEntities], nil
		}
		if len(page) < d.cfg.PageSize {
			return records, nil
		}
	}
}

func (d *Detector) skipBucket(t id.IdentifierType, value string, bucket []*entity.Record) bool {
	if len(bucket) < 2 {
		return true
	}
	if len(bucket) > d.cfg.MaxBucket {
		d.logger.Warn("identifier shared too widely, skipping; consider blacklisting",
			"identifier_type", t.String(),
			"value", value,
			"entities", len(bucket),
		)
		return true
	}
	return false
}

func (d *Detector) emailBucket(ctx context.Context, kind id.EntityKind, value string, bucket []*entity.Record, results chan<- id.DuplicateTier) error {
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			sim := score.NameSimilarity(bucket[i].Entity.DisplayName, bucket[j].Entity.DisplayName)
			c := NewCandidate(kind, bucket[i].Entity.ID, bucket[j].Entity.ID,
				id.TierStrongIdentifier, 0.95+0.05*sim, "shared email "+value)
			if err := d.store.Upsert(ctx, c); err != nil {
				return err
			}
			results <- id.TierStrongIdentifier
		}
	}
	return nil
}

func (d *Detector) phoneBucket(ctx context.Context, kind id.EntityKind, value string, bucket []*entity.Record, results chan<- id.DuplicateTier) error {
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			sim := score.NameSimilarity(bucket[i].Entity.DisplayName, bucket[j].Entity.DisplayName)
			tier := id.TierWeakIdentifierNameMatch
			confidence := 0.80 + 0.10*sim
			reason := "shared phone " + value
			if sim < d.cfg.NameSimThreshold {
				// Same line, different names: a household candidate, surfaced
				// so reviewers can record the relationship, not a duplicate.
				tier = id.TierWeakIdentifierNameMismatch
				confidence = 0.60
				reason = "shared phone " + value + ", names differ"
			}
			c := NewCandidate(kind, bucket[i].Entity.ID, bucket[j].Entity.ID, tier, confidence, reason)
			if err := d.store.Upsert(ctx, c); err != nil {
				return err
			}
			results <- tier
		}
	}
	return nil
}

// nameBucket surfaces same-name pairs only when they share relationship
// context. A name-only pair with no shared identifier and no shared context
// is never surfaced: same first name, unrelated people.
func (d *Detector) nameBucket(ctx context.Context, kind id.EntityKind, bucket []*entity.Record, results chan<- id.DuplicateTier) error {
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			a, b := bucket[i], bucket[j]
			if sharesIdentifier(a, b) {
				continue // already covered by an identifier bucket
			}
			shared, reason, err := d.sharedContext(ctx, a, b)
			if err != nil {
				return err
			}
			if !shared {
				continue
			}
			c := NewCandidate(kind, a.Entity.ID, b.Entity.ID,
				id.TierNameWithContext, 0.55, "same name, "+reason)
			if err := d.store.Upsert(ctx, c); err != nil {
				return err
			}
			results <- id.TierNameWithContext
		}
	}
	return nil
}

func sharesIdentifier(a, b *entity.Record) bool {
	values := make(map[string]bool, len(a.Identifiers))
	for _, ident := range a.Identifiers {
		if ident.Type == id.IdentifierLegacyKey {
			continue
		}
		values[string(ident.Type)+":"+ident.Normalized] = true
	}
	for _, ident := range b.Identifiers {
		if ident.Type == id.IdentifierLegacyKey {
			continue
		}
		if values[string(ident.Type)+":"+ident.Normalized] {
			return true
		}
	}
	return false
}

// sharedContext reports whether two entities share a postal address or a
// common graph neighbor.
func (d *Detector) sharedContext(ctx context.Context, a, b *entity.Record) (bool, string, error) {
	if a.Entity.AddressNorm != "" && a.Entity.AddressNorm == b.Entity.AddressNorm {
		return true, "same address", nil
	}

	aEdges, err := d.edges.Edges(ctx, a.Entity.ID)
	if err != nil {
		return false, "", err
	}
	if len(aEdges) == 0 {
		return false, "", nil
	}
	neighbors := make(map[id.EntityID]bool, len(aEdges))
	for _, e := range aEdges {
		neighbors[e.From] = true
		neighbors[e.To] = true
	}
	bEdges, err := d.edges.Edges(ctx, b.Entity.ID)
	if err != nil {
		return false, "", err
	}
	for _, e := range bEdges {
		if e.From != b.Entity.ID && neighbors[e.From] {
			return true, "shared relationship", nil
		}
		if e.To != b.Entity.ID && neighbors[e.To] {
			return true, "shared relationship", nil
		}
	}
	return false, "", nil
}
