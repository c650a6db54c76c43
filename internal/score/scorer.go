package score

import (
	"context"
	"sort"
	"time"

	"trapper/internal/entity"
	"trapper/internal/source"
	id "trapper/pkg/domain"
)

// Rule base scores, highest evidence first. A phone collision with a
// conflicting name is scored into the household band instead.
const (
	phoneExactScore  = 1.0
	emailExactScore  = 0.98
	nameAreaCodeBase = 0.85
	householdScore   = 0.80
	nameOnlyBase     = 0.50
)

// Config carries the tunable scoring parameters. The defaults mirror the
// production-tuned values of the system this engine replaces; none of them
// are assumed optimal.
type Config struct {
	// MinScore drops candidates below it before ranking.
	MinScore float64
	// MaxCandidates caps the ranked list.
	MaxCandidates int
	// FuzzyNameSim is the similarity floor for name-based rules.
	FuzzyNameSim float64
	// HouseholdNameSim is the discriminator: a phone match with name
	// similarity below it is a different person sharing a line.
	HouseholdNameSim float64
}

func DefaultConfig() Config {
	return Config{
		MinScore:         0.40,
		MaxCandidates:    5,
		FuzzyNameSim:     0.70,
		HouseholdNameSim: 0.50,
	}
}

// Input is one normalized record to score. Empty fields mean absent.
type Input struct {
	Email   string
	Phone   string
	Name    string
	Address string
}

// Candidate is one scored existing entity.
type Candidate struct {
	EntityID id.EntityID
	Record   entity.Record

	EmailScore   float64
	PhoneScore   float64
	NameScore    float64
	AddressScore float64
	// NameSimilarity is the raw name ratio, kept separate from NameScore for
	// the decision evidence trail.
	NameSimilarity float64
	Total          float64

	// Household reports a phone match with conflicting names.
	Household bool
	// MatchedOn lists identifier types that matched exactly.
	MatchedOn  []id.IdentifierType
	LastSeenAt time.Time
}

// MatchedIdentifier reports whether the candidate matched on the given type.
func (c *Candidate) MatchedIdentifier(t id.IdentifierType) bool {
	for _, m := range c.MatchedOn {
		if m == t {
			return true
		}
	}
	return false
}

// Scorer scores candidates against one input record, weighting the fuzzy
// name rules by the reliability of the candidate's source.
type Scorer struct {
	sources source.Registry
	cfg     Config
}

func NewScorer(sources source.Registry, cfg Config) *Scorer {
	if cfg.MaxCandidates <= 0 {
		cfg = DefaultConfig()
	}
	return &Scorer{sources: sources, cfg: cfg}
}

func (s *Scorer) Config() Config { return s.cfg }

// reliabilityWeight scales the fuzzy name rules by how much the candidate
// record's source is trusted. Exact identifier scores are never scaled: the
// stored value either equals the input or it does not, and discounting an
// exact match would let a noisy source push it out of its band.
func reliabilityWeight(rel float64) float64 {
	if rel <= 0 || rel > 1 {
		rel = 1
	}
	return 0.9 + 0.1*rel
}

// Score evaluates one candidate record against the input. The second return
// is false when the candidate falls below the minimum score.
func (s *Scorer) Score(ctx context.Context, in Input, rec entity.Record) (Candidate, bool) {
	c := Candidate{
		EntityID:   rec.Entity.ID,
		Record:     rec,
		LastSeenAt: rec.Entity.LastSeenAt,
	}

	candEmail := rec.Identifier(id.IdentifierEmail)
	candPhone := rec.Identifier(id.IdentifierPhone)

	if in.Name != "" && rec.Entity.DisplayName != "" {
		c.NameSimilarity = NameSimilarity(in.Name, rec.Entity.DisplayName)
	}
	c.AddressScore = AddressSimilarity(in.Address, rec.Entity.AddressNorm) * addressShare

	if in.Email != "" && in.Email == candEmail {
		c.EmailScore = emailExactScore
		c.MatchedOn = append(c.MatchedOn, id.IdentifierEmail)
	}
	if in.Phone != "" && in.Phone == candPhone {
		bothNamed := in.Name != "" && rec.Entity.DisplayName != ""
		if bothNamed && c.NameSimilarity < s.cfg.HouseholdNameSim {
			// Same line, different person.
			c.PhoneScore = householdScore
			c.Household = true
		} else {
			c.PhoneScore = phoneExactScore
		}
		c.MatchedOn = append(c.MatchedOn, id.IdentifierPhone)
	}

	// Name-based rules only apply without an exact identifier match, and only
	// they carry the source reliability weight.
	if len(c.MatchedOn) == 0 && c.NameSimilarity >= s.cfg.FuzzyNameSim {
		w := s.sourceWeight(ctx, rec)
		if areaCodeMatch(in.Phone, candPhone) {
			c.NameScore = (nameAreaCodeBase + c.NameSimilarity*0.1) * w
		} else {
			c.NameScore = (nameOnlyBase + c.NameSimilarity*0.3) * w
		}
	}

	// An email match identifies the person directly and overrides the
	// household reading of a shared phone.
	if c.EmailScore > 0 {
		c.Household = false
	}

	c.Total = c.EmailScore
	if c.PhoneScore > c.Total {
		c.Total = c.PhoneScore
	}
	if c.NameScore > c.Total {
		c.Total = c.NameScore
	}
	if c.Total > 0 {
		c.Total += c.AddressScore
	}
	if c.Total > 1 {
		c.Total = 1
	}

	if c.Total < s.cfg.MinScore {
		return Candidate{}, false
	}
	return c, true
}

// addressShare keeps postal-address agreement a pure tie-breaker.
const addressShare = 0.01

// sourceWeight is the reliability weight of the source that produced the
// candidate record.
func (s *Scorer) sourceWeight(ctx context.Context, rec entity.Record) float64 {
	return reliabilityWeight(source.Lookup(ctx, s.sources, rec.Entity.Source).Reliability)
}

func areaCodeMatch(a, b string) bool {
	return len(a) == 10 && len(b) == 10 && a[:3] == b[:3]
}

// Rank orders candidates best-first and caps the list. Ties break by most
// recent source record, then lowest entity id for determinism.
func (s *Scorer) Rank(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if !a.LastSeenAt.Equal(b.LastSeenAt) {
			return a.LastSeenAt.After(b.LastSeenAt)
		}
		return a.EntityID.Less(b.EntityID)
	})
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}
	return candidates
}
