package exclusion

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"trapper/internal/normalize"
)

// Filter applies the two pattern tables to a display label before any
// matching begins. Rules are loaded from the store and cached with a TTL so
// operator amendments take effect without a restart or redeploy.
type Filter struct {
	store  RuleStore
	logger *slog.Logger
	ttl    time.Duration

	mu       sync.RWMutex
	compiled []compiledRule
	loadedAt time.Time
}

type compiledRule struct {
	rule *Rule
	re   *regexp.Regexp // non-nil only for MatchRegex
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithLogger sets the filter logger.
func WithLogger(logger *slog.Logger) FilterOption {
	return func(f *Filter) { f.logger = logger }
}

// WithReloadTTL sets how long a loaded rule set is served before the store is
// consulted again.
func WithReloadTTL(ttl time.Duration) FilterOption {
	return func(f *Filter) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// NewFilter constructs a filter over the given rule store.
func NewFilter(store RuleStore, opts ...FilterOption) (*Filter, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	f := &Filter{
		store:  store,
		logger: slog.Default(),
		ttl:    time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Classify tests a display label against the organization table first, then
// the internal-account table. The first matching rule wins within a stage;
// organization rules with a representative redirect rather than reject.
func (f *Filter) Classify(ctx context.Context, displayName string) (Classification, error) {
	rules, err := f.rules(ctx)
	if err != nil {
		return Classification{}, err
	}

	label := normalize.NameKey(displayName)
	if label == "" {
		return Classification{}, nil
	}

	for _, stage := range []Stage{StageOrganization, StageInternal} {
		for _, cr := range rules {
			if cr.rule.Stage != stage {
				continue
			}
			if !cr.matches(label) {
				continue
			}
			return Classification{
				Excluded:       true,
				Stage:          stage,
				RuleID:         cr.rule.ID,
				Pattern:        cr.rule.Pattern,
				Representative: cr.rule.Representative,
			}, nil
		}
	}
	return Classification{}, nil
}

// Invalidate drops the cached rule set so the next Classify reloads.
// Handlers call this after a rule mutation.
func (f *Filter) Invalidate() {
	f.mu.Lock()
	f.loadedAt = time.Time{}
	f.mu.Unlock()
}

func (f *Filter) rules(ctx context.Context) ([]compiledRule, error) {
	f.mu.RLock()
	if !f.loadedAt.IsZero() && time.Since(f.loadedAt) < f.ttl {
		cached := f.compiled
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loadedAt.IsZero() && time.Since(f.loadedAt) < f.ttl {
		return f.compiled, nil
	}

	active, err := f.store.ListActive(ctx)
	if err != nil {
		// Serve the stale set rather than fail resolution when the store is
		// briefly unreachable; fail only on a cold cache.
		if f.compiled != nil {
			f.logger.Warn("exclusion rule reload failed, serving stale rules", "error", err)
			return f.compiled, nil
		}
		return nil, fmt.Errorf("load exclusion rules: %w", err)
	}

	compiled := make([]compiledRule, 0, len(active))
	for _, r := range active {
		cr := compiledRule{rule: r}
		if r.Match == MatchRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				f.logger.Warn("skipping exclusion rule with invalid regex",
					"rule_id", r.ID.String(),
					"pattern", r.Pattern,
					"error", err,
				)
				continue
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}
	f.compiled = compiled
	f.loadedAt = time.Now()
	return f.compiled, nil
}

func (c compiledRule) matches(label string) bool {
	pattern := strings.ToLower(c.rule.Pattern)
	switch c.rule.Match {
	case MatchExact:
		return label == pattern
	case MatchPrefix:
		return strings.HasPrefix(label, pattern)
	case MatchSubstring:
		return strings.Contains(label, pattern)
	case MatchRegex:
		return c.re != nil && c.re.MatchString(label)
	}
	return false
}
