// Package source is the registry of upstream systems. The scorer weighs
// matched identifiers by source reliability; the skeleton gate consults the
// trusted flag. Operators maintain the registry, the engine only reads it.
package source

import (
	"context"
	"time"
)

// Source describes one upstream system.
type Source struct {
	System string
	// Reliability in (0,1] scales identifier match confidence. A staff-managed
	// roster outweighs a public web form.
	Reliability float64
	// Trusted permits skeleton creation for name-only records from this source.
	Trusted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry exposes read access to the source registry.
type Registry interface {
	Get(ctx context.Context, system string) (*Source, error)
	List(ctx context.Context) ([]*Source, error)
}

// defaultReliability applies to sources not present in the registry, so an
// unknown upstream degrades scores rather than failing resolution.
const defaultReliability = 0.8

// Lookup returns the registered source, or a default-weighted untrusted one
// when the system is unknown.
func Lookup(ctx context.Context, reg Registry, system string) Source {
	if reg != nil {
		if s, err := reg.Get(ctx, system); err == nil && s != nil {
			return *s
		}
	}
	return Source{System: system, Reliability: defaultReliability, Trusted: false}
}
