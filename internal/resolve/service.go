package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trapper/internal/entity"
	"trapper/internal/exclusion"
	"trapper/internal/graph"
	"trapper/internal/normalize"
	"trapper/internal/resolve/metrics"
	"trapper/internal/score"
	"trapper/internal/source"
	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/requestcontext"
)

var tracer = otel.Tracer("trapper.resolve")

// EventPublisher streams decision events to downstream review surfaces.
// Implementations must not block or fail the resolution attempt.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte)
}

// Resolver runs the decision policy over a single resolution attempt. Safe
// for concurrent use; all per-attempt state lives in explicit context values,
// never in shared fields.
type Resolver struct {
	entities  entity.Store
	graph     *graph.Graph
	filter    *exclusion.Filter
	blacklist exclusion.BlacklistStore
	sources   source.Registry
	decisions DecisionStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
	scorer    *score.Scorer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// WithConfig overrides the default thresholds.
func WithConfig(cfg Config) ResolverOption {
	return func(r *Resolver) { r.cfg = cfg }
}

// WithBlacklist sets the identifier blacklist store.
func WithBlacklist(store exclusion.BlacklistStore) ResolverOption {
	return func(r *Resolver) { r.blacklist = store }
}

// WithSources sets the source registry used for reliability weights and the
// skeleton gate.
func WithSources(reg source.Registry) ResolverOption {
	return func(r *Resolver) { r.sources = reg }
}

// WithPublisher sets the decision event publisher.
func WithPublisher(p EventPublisher) ResolverOption {
	return func(r *Resolver) { r.publisher = p }
}

// WithMetrics sets the resolution metrics.
func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver constructs the resolution service.
func NewResolver(entities entity.Store, g *graph.Graph, filter *exclusion.Filter, decisions DecisionStore, opts ...ResolverOption) (*Resolver, error) {
	if entities == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if g == nil {
		return nil, fmt.Errorf("identity graph is required")
	}
	if filter == nil {
		return nil, fmt.Errorf("exclusion filter is required")
	}
	if decisions == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	r := &Resolver{
		entities:  entities,
		graph:     g,
		filter:    filter,
		decisions: decisions,
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.scorer = score.NewScorer(r.sources, r.cfg.Scoring)
	return r, nil
}

// normalized is the canonical view of one input record.
type normalized struct {
	email   string
	phone   string
	name    string
	address string
	// legacyKey is "system:recordID", the upstream primary key.
	legacyKey string
}

func (r *Resolver) normalizeInput(in Input) normalized {
	n := normalized{
		email:   normalize.Email(in.Email),
		phone:   normalize.Phone(in.Phone),
		name:    normalize.DisplayName(in.FirstName, in.LastName),
		address: normalize.Address(in.Address),
	}
	if in.SourceRecordID != "" && in.SourceSystem != "" {
		n.legacyKey = in.SourceSystem + ":" + in.SourceRecordID
	}
	return n
}

// Resolve runs one resolution attempt end to end: normalize, filter, score,
// decide, apply side effects, log the decision. Exactly one decision row is
// written per call that returns without error.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Outcome, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "resolve",
		trace.WithAttributes(attribute.String("source_system", in.SourceSystem)),
	)
	defer span.End()
	defer func() { r.metrics.ObserveResolveLatency(time.Since(start)) }()

	n := r.normalizeInput(in)
	dec := &MatchDecision{
		ID:             id.NewDecisionID(),
		SourceSystem:   in.SourceSystem,
		SourceRecordID: in.SourceRecordID,
		InputName:      n.name,
		InputEmail:     n.email,
		InputPhone:     n.phone,
	}
	ev := &Evidence{}

	if err := r.decide(ctx, in, n, dec, ev); err != nil {
		span.RecordError(err)
		return nil, err
	}

	evidence, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal decision evidence: %w", err)
	}
	dec.Evidence = evidence
	if err := r.decisions.Append(ctx, dec); err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.metrics.IncrementOutcome(dec.Type.String(), in.SourceSystem)
	span.SetAttributes(
		attribute.String("decision_type", dec.Type.String()),
		attribute.Float64("confidence", dec.Confidence),
	)
	r.publishDecision(ctx, dec)

	out := &Outcome{
		DecisionID: dec.ID,
		Type:       dec.Type,
		EntityID:   dec.EntityID,
		Confidence: dec.Confidence,
	}
	if dec.Type == id.DecisionHouseholdMember {
		out.HouseholdID = dec.MatchedEntityID
	}
	return out, nil
}

// decide walks the state machine to a terminal decision, filling dec and ev
// and applying side effects for the winning transition only.
func (r *Resolver) decide(ctx context.Context, in Input, n normalized, dec *MatchDecision, ev *Evidence) error {
	if n.name != "" {
		cls, err := r.filter.Classify(ctx, n.name)
		if err != nil {
			return err
		}
		if cls.Excluded {
			ev.ExclusionRule = cls.Pattern
			if cls.Representative != nil {
				return r.redirectToRepresentative(ctx, *cls.Representative, dec)
			}
			dec.Type = id.DecisionExcluded
			return nil
		}
	}

	hadIdentifier := n.email != "" || n.phone != ""
	if err := r.dropBlacklisted(ctx, &n, ev); err != nil {
		return err
	}
	if hadIdentifier && n.email == "" && n.phone == "" {
		dec.Type = id.DecisionBlacklistedIdentifier
		return nil
	}

	skel, owner, err := r.findUpstreamRecord(ctx, n)
	if err != nil {
		return err
	}
	// The upstream primary key is exact: a record whose legacy key is already
	// held by a full entity resolved here before and routes back to its owner.
	if owner != nil {
		return r.relinkUpstreamRecord(ctx, in, n, owner.ID, dec, ev)
	}

	if n.email == "" && n.phone == "" {
		return r.decideNoIdentifiers(ctx, in, n, skel, dec, ev)
	}
	return r.scoreAndDecide(ctx, in, n, skel, dec, ev)
}

func (r *Resolver) redirectToRepresentative(ctx context.Context, rep id.EntityID, dec *MatchDecision) error {
	canonical, err := r.graph.Canonicalize(ctx, rep)
	if err != nil {
		if errors.Is(err, graph.ErrCycleGuard) {
			r.logger.Warn("representative has no canonical resolution, rejecting input",
				"representative", rep.String(),
			)
			dec.Type = id.DecisionExcluded
			return nil
		}
		return err
	}
	dec.Type = id.DecisionOrgRepresentative
	dec.EntityID = &canonical
	return nil
}

// dropBlacklisted treats blacklisted identifier values as absent.
func (r *Resolver) dropBlacklisted(ctx context.Context, n *normalized, ev *Evidence) error {
	if r.blacklist == nil {
		return nil
	}
	if n.email != "" {
		listed, err := r.blacklist.IsBlacklisted(ctx, id.IdentifierEmail, n.email)
		if err != nil {
			return err
		}
		if listed {
			ev.BlacklistedIdentifiers = append(ev.BlacklistedIdentifiers, n.email)
			n.email = ""
		}
	}
	if n.phone != "" {
		listed, err := r.blacklist.IsBlacklisted(ctx, id.IdentifierPhone, n.phone)
		if err != nil {
			return err
		}
		if listed {
			ev.BlacklistedIdentifiers = append(ev.BlacklistedIdentifiers, n.phone)
			n.phone = ""
		}
	}
	return nil
}

// findUpstreamRecord looks up entities already holding the input's legacy
// key. A skeleton feeds the gate and promotion paths; a full entity means
// the same upstream record resolved before.
func (r *Resolver) findUpstreamRecord(ctx context.Context, n normalized) (skel, owner *entity.Entity, err error) {
	if n.legacyKey == "" {
		return nil, nil, nil
	}
	records, err := r.entities.FindByIdentifier(ctx, id.KindPerson, id.IdentifierLegacyKey, n.legacyKey)
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range records {
		e := rec.Entity
		if e.Skeleton {
			skel = &e
		} else {
			owner = &e
		}
	}
	return skel, owner, nil
}

// relinkUpstreamRecord routes a re-submitted upstream record back to the
// entity its earlier resolution created, attaching whatever identifiers the
// record has acquired since.
func (r *Resolver) relinkUpstreamRecord(ctx context.Context, in Input, n normalized, owner id.EntityID, dec *MatchDecision, ev *Evidence) error {
	canonical, err := r.canonicalOf(ctx, owner)
	if err != nil {
		return err
	}
	r.attachNewIdentifiers(ctx, canonical, in, n, 1.0)
	if err := r.entities.RecordSeen(ctx, canonical, in.SourceSystem); err != nil {
		return err
	}
	ev.LegacyKeyMatch = true
	dec.Type = id.DecisionAutoMatch
	dec.EntityID = &canonical
	dec.Confidence = 1.0
	return nil
}

// decideNoIdentifiers handles name-only inputs: skeleton creation for trusted
// sources, rejection otherwise.
func (r *Resolver) decideNoIdentifiers(ctx context.Context, in Input, n normalized, skel *entity.Entity, dec *MatchDecision, ev *Evidence) error {
	src := source.Lookup(ctx, r.sources, in.SourceSystem)
	if n.name == "" || !src.Trusted {
		dec.Type = id.DecisionNoIdentifiers
		return nil
	}

	// Re-submitting the same upstream record is a no-op.
	if skel != nil {
		dec.Type = id.DecisionSkeleton
		dec.EntityID = &skel.ID
		return nil
	}

	e := r.buildEntity(ctx, in, n)
	e.Skeleton = true
	idents := r.buildIdentifiers(ctx, e.ID, in, n, nil)
	if err := r.entities.Create(ctx, &e, idents); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another attempt for the same upstream record won the legacy key.
			existingSkel, existingOwner, ferr := r.findUpstreamRecord(ctx, n)
			if ferr == nil && existingSkel != nil {
				dec.Type = id.DecisionSkeleton
				dec.EntityID = &existingSkel.ID
				return nil
			}
			if ferr == nil && existingOwner != nil {
				return r.relinkUpstreamRecord(ctx, in, n, existingOwner.ID, dec, ev)
			}
		}
		return err
	}
	dec.Type = id.DecisionSkeleton
	dec.EntityID = &e.ID
	return nil
}

// scoreAndDecide retrieves and scores candidates, then applies the threshold
// ladder. On a creation uniqueness race it re-enters itself exactly once,
// retrying as a match against whatever the winning writer inserted.
func (r *Resolver) scoreAndDecide(ctx context.Context, in Input, n normalized, skel *entity.Entity, dec *MatchDecision, ev *Evidence) error {
	candidates, err := r.scoreCandidates(ctx, n, skel)
	if err != nil {
		return err
	}
	r.metrics.ObserveCandidateCount(len(candidates))
	ev.Candidates = candidateEvidence(candidates)

	if email, phone, ok := identifierConflict(candidates); ok {
		return r.decideConflict(ctx, in, n, email, phone, dec, ev)
	}

	retryAsMatch := func(createErr error) error {
		if !errors.Is(createErr, sentinel.ErrConflict) || ev.ConstraintRetry {
			return createErr
		}
		ev.ConstraintRetry = true
		r.metrics.IncrementConstraintRetry()
		r.logger.Info("entity creation lost uniqueness race, retrying as match",
			"source_system", in.SourceSystem,
		)
		return r.scoreAndDecide(ctx, in, n, skel, dec, ev)
	}

	if len(candidates) == 0 || candidates[0].Total < r.cfg.ReviewFloor {
		entityID, err := r.createOrPromote(ctx, in, n, skel, nil, ev)
		if err != nil {
			return retryAsMatch(err)
		}
		dec.Type = id.DecisionNewEntity
		if skel != nil {
			// Promoting its own earlier skeleton is a certain identity match.
			dec.Type = id.DecisionAutoMatch
			dec.Confidence = 1.0
		}
		dec.EntityID = &entityID
		return nil
	}

	top := candidates[0]
	switch {
	case top.Total >= r.cfg.AutoMatchThreshold && !top.Household:
		return r.linkToEntity(ctx, in, n, top, skel, dec, ev)

	case top.Household:
		owned := ownedValues(candidates)
		entityID, err := r.createOrPromote(ctx, in, n, skel, owned, ev)
		if err != nil {
			return retryAsMatch(err)
		}
		if err := r.graph.Append(ctx, graphEdge(entityID, top.EntityID, id.EdgeHouseholdMember, top.Total, "shared phone "+n.phone)); err != nil {
			return err
		}
		dec.Type = id.DecisionHouseholdMember
		dec.EntityID = &entityID
		dec.MatchedEntityID = &top.EntityID
		dec.Confidence = top.Total
		return nil

	default:
		owned := ownedValues(candidates)
		entityID, err := r.createOrPromote(ctx, in, n, skel, owned, ev)
		if err != nil {
			return retryAsMatch(err)
		}
		dec.Type = id.DecisionNeedsReview
		dec.ReviewStatus = ReviewPending
		dec.EntityID = &entityID
		dec.MatchedEntityID = &top.EntityID
		dec.Confidence = top.Total
		return nil
	}
}

// scoreCandidates retrieves canonical entities by exact identifier and ranks
// them. The caller's own skeleton is never a candidate.
func (r *Resolver) scoreCandidates(ctx context.Context, n normalized, skel *entity.Entity) ([]score.Candidate, error) {
	seen := make(map[id.EntityID]bool)
	var records []*entity.Record
	lookup := func(t id.IdentifierType, value string) error {
		if value == "" {
			return nil
		}
		found, err := r.entities.FindByIdentifier(ctx, id.KindPerson, t, value)
		if err != nil {
			return err
		}
		for _, rec := range found {
			if seen[rec.Entity.ID] || (skel != nil && rec.Entity.ID == skel.ID) {
				continue
			}
			seen[rec.Entity.ID] = true
			records = append(records, rec)
		}
		return nil
	}
	if err := lookup(id.IdentifierEmail, n.email); err != nil {
		return nil, err
	}
	if err := lookup(id.IdentifierPhone, n.phone); err != nil {
		return nil, err
	}

	input := score.Input{
		Email:   n.email,
		Phone:   n.phone,
		Name:    n.name,
		Address: n.address,
	}
	var candidates []score.Candidate
	for _, rec := range records {
		if c, ok := r.scorer.Score(ctx, input, *rec); ok {
			candidates = append(candidates, c)
		}
	}
	return r.scorer.Rank(candidates), nil
}

// identifierConflict reports the best email-matched and best phone-matched
// candidates when they are two different entities.
func identifierConflict(candidates []score.Candidate) (email, phone score.Candidate, ok bool) {
	var haveEmail, havePhone bool
	for _, c := range candidates {
		if !haveEmail && c.MatchedIdentifier(id.IdentifierEmail) {
			email, haveEmail = c, true
		}
		if !havePhone && c.MatchedIdentifier(id.IdentifierPhone) && !c.MatchedIdentifier(id.IdentifierEmail) {
			phone, havePhone = c, true
		}
	}
	return email, phone, haveEmail && havePhone && email.EntityID != phone.EntityID
}

// decideConflict applies the cross-identifier rule: the stronger identifier
// class wins the link, the other entity is edged related-to, and the decision
// is flagged for review regardless of score.
func (r *Resolver) decideConflict(ctx context.Context, in Input, n normalized, email, phone score.Candidate, dec *MatchDecision, ev *Evidence) error {
	ev.IdentifierConflict = true
	canonical, err := r.canonicalOf(ctx, email.EntityID)
	if err != nil {
		return err
	}

	if err := r.graph.Append(ctx, graphEdge(canonical, phone.EntityID, id.EdgeRelatedTo, phone.Total, "phone "+n.phone+" matched during resolution")); err != nil {
		return err
	}
	if err := r.entities.RecordSeen(ctx, canonical, in.SourceSystem); err != nil {
		return err
	}

	dec.Type = id.DecisionNeedsReview
	dec.ReviewStatus = ReviewPending
	dec.EntityID = &canonical
	dec.MatchedEntityID = &phone.EntityID
	dec.Confidence = email.Total
	return nil
}

// linkToEntity applies an auto-match: canonicalize, attach new identifiers,
// absorb the caller's skeleton if one exists, refresh provenance.
func (r *Resolver) linkToEntity(ctx context.Context, in Input, n normalized, top score.Candidate, skel *entity.Entity, dec *MatchDecision, ev *Evidence) error {
	canonical, err := r.canonicalOf(ctx, top.EntityID)
	if err != nil {
		return err
	}

	r.attachNewIdentifiers(ctx, canonical, in, n, top.Total)

	if skel != nil && skel.ID != canonical {
		if err := r.absorbSkeleton(ctx, skel.ID, canonical); err != nil {
			return err
		}
		ev.SkeletonMerged = skel.ID.String()
	}

	if err := r.entities.RecordSeen(ctx, canonical, in.SourceSystem); err != nil {
		return err
	}
	dec.Type = id.DecisionAutoMatch
	dec.EntityID = &canonical
	dec.Confidence = top.Total
	return nil
}

// canonicalOf resolves through the merge chain. A cycle guard degrades to the
// stored entity rather than failing the attempt; the store only returns
// canonical records, so this is a defect signal, not a routine path.
func (r *Resolver) canonicalOf(ctx context.Context, entityID id.EntityID) (id.EntityID, error) {
	canonical, err := r.graph.Canonicalize(ctx, entityID)
	if err != nil {
		if errors.Is(err, graph.ErrCycleGuard) {
			r.logger.Error("no canonical resolution for matched entity",
				"entity_id", entityID.String(),
			)
			return entityID, nil
		}
		return id.EntityID{}, err
	}
	return canonical, nil
}

// attachNewIdentifiers adds input identifiers the matched entity does not
// hold yet. A value owned by a different entity is logged and skipped, never
// stolen.
func (r *Resolver) attachNewIdentifiers(ctx context.Context, entityID id.EntityID, in Input, n normalized, confidence float64) {
	attach := func(t id.IdentifierType, raw, value string) {
		if value == "" {
			return
		}
		err := r.entities.AttachIdentifier(ctx, entityID, entity.Identifier{
			EntityID:   entityID,
			Type:       t,
			Raw:        raw,
			Normalized: value,
			Source:     in.SourceSystem,
			Confidence: confidence,
		})
		if err != nil && !errors.Is(err, sentinel.ErrConflict) {
			r.logger.Warn("attach identifier failed",
				"entity_id", entityID.String(),
				"identifier_type", t.String(),
				"error", err,
			)
		}
	}
	attach(id.IdentifierEmail, in.Email, n.email)
	attach(id.IdentifierPhone, in.Phone, n.phone)
	attach(id.IdentifierLegacyKey, n.legacyKey, n.legacyKey)
}

// absorbSkeleton merges a skeleton into the matched canonical entity inside
// one unit of work.
func (r *Resolver) absorbSkeleton(ctx context.Context, skeletonID, canonical id.EntityID) error {
	if err := r.entities.TransferIdentifiers(ctx, skeletonID, canonical); err != nil {
		return err
	}
	if err := r.entities.MarkMerged(ctx, skeletonID, canonical); err != nil {
		return err
	}
	return r.graph.RecordMerge(ctx, id.KindPerson, skeletonID, canonical, "skeleton absorbed on profile update")
}

func (r *Resolver) buildEntity(ctx context.Context, in Input, n normalized) entity.Entity {
	now := requestcontext.Now(ctx)
	return entity.Entity{
		ID:          id.NewEntityID(),
		Kind:        id.KindPerson,
		DisplayName: n.name,
		AddressNorm: n.address,
		Source:      in.SourceSystem,
		Canonical:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeenAt:  now,
	}
}

// buildIdentifiers assembles the identifier rows for a new entity, excluding
// values already owned by an existing canonical entity.
func (r *Resolver) buildIdentifiers(ctx context.Context, entityID id.EntityID, in Input, n normalized, owned map[string]bool) []entity.Identifier {
	now := requestcontext.Now(ctx)
	var out []entity.Identifier
	add := func(t id.IdentifierType, raw, value string) {
		if value == "" || owned[string(t)+":"+value] {
			return
		}
		out = append(out, entity.Identifier{
			EntityID:   entityID,
			Type:       t,
			Raw:        raw,
			Normalized: value,
			Source:     in.SourceSystem,
			Confidence: 1.0,
			CreatedAt:  now,
		})
	}
	add(id.IdentifierEmail, in.Email, n.email)
	add(id.IdentifierPhone, in.Phone, n.phone)
	add(id.IdentifierLegacyKey, n.legacyKey, n.legacyKey)
	return out
}

// createOrPromote creates a new entity, or promotes the caller's earlier
// skeleton in place when one exists.
func (r *Resolver) createOrPromote(ctx context.Context, in Input, n normalized, skel *entity.Entity, owned map[string]bool, ev *Evidence) (id.EntityID, error) {
	if skel != nil {
		for _, ident := range r.buildIdentifiers(ctx, skel.ID, in, n, owned) {
			if ident.Type == id.IdentifierLegacyKey {
				continue // the skeleton already owns its legacy key
			}
			if err := r.entities.AttachIdentifier(ctx, skel.ID, ident); err != nil {
				return id.EntityID{}, err
			}
		}
		if err := r.entities.Promote(ctx, skel.ID); err != nil {
			return id.EntityID{}, err
		}
		ev.SkeletonPromoted = true
		return skel.ID, nil
	}

	e := r.buildEntity(ctx, in, n)
	idents := r.buildIdentifiers(ctx, e.ID, in, n, owned)
	if err := r.entities.Create(ctx, &e, idents); err != nil {
		return id.EntityID{}, err
	}
	return e.ID, nil
}

// ownedValues collects identifier values already held by scored candidates,
// so ambiguous creations never violate the uniqueness constraint.
func ownedValues(candidates []score.Candidate) map[string]bool {
	owned := make(map[string]bool)
	for _, c := range candidates {
		for _, ident := range c.Record.Identifiers {
			owned[string(ident.Type)+":"+ident.Normalized] = true
		}
	}
	return owned
}

func candidateEvidence(candidates []score.Candidate) []CandidateEvidence {
	out := make([]CandidateEvidence, 0, len(candidates))
	for _, c := range candidates {
		matched := make([]string, 0, len(c.MatchedOn))
		for _, m := range c.MatchedOn {
			matched = append(matched, m.String())
		}
		out = append(out, CandidateEvidence{
			EntityID:       c.EntityID.String(),
			Total:          c.Total,
			EmailScore:     c.EmailScore,
			PhoneScore:     c.PhoneScore,
			NameScore:      c.NameScore,
			AddressScore:   c.AddressScore,
			NameSimilarity: c.NameSimilarity,
			Household:      c.Household,
			MatchedOn:      matched,
		})
	}
	return out
}

func graphEdge(from, to id.EntityID, t id.EdgeType, confidence float64, note string) graph.Edge {
	return graph.Edge{
		Kind:       id.KindPerson,
		From:       from,
		To:         to,
		Type:       t,
		Confidence: confidence,
		Note:       note,
	}
}

// decisionEvent is the wire shape published to the decision topic.
type decisionEvent struct {
	DecisionID   string    `json:"decisionId"`
	Type         string    `json:"decisionType"`
	EntityID     string    `json:"entityId,omitempty"`
	Confidence   float64   `json:"confidenceScore"`
	SourceSystem string    `json:"sourceSystem"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r *Resolver) publishDecision(ctx context.Context, dec *MatchDecision) {
	if r.publisher == nil {
		return
	}
	event := decisionEvent{
		DecisionID:   dec.ID.String(),
		Type:         dec.Type.String(),
		Confidence:   dec.Confidence,
		SourceSystem: dec.SourceSystem,
		CreatedAt:    dec.CreatedAt,
	}
	if dec.EntityID != nil {
		event.EntityID = dec.EntityID.String()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("marshal decision event failed", "error", err)
		return
	}
	r.publisher.Publish(ctx, dec.ID.String(), payload)
}
