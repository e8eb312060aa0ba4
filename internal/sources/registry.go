package sources

import (
	"fmt"
	"strings"

	"NewsAnalyst/internal/domain"
)

// Registry keeps the configured source profiles keyed by lowercase name.
// It is read-only after construction.
type Registry struct {
	profiles map[string]domain.SourceProfile
	order    []string
}

// NewRegistry builds a registry from configured profiles. Later duplicates
// replace earlier ones but keep the original position.
func NewRegistry(profiles []domain.SourceProfile) (*Registry, error) {
	r := &Registry{profiles: map[string]domain.SourceProfile{}}
	for _, p := range profiles {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("source profile without name")
		}
		p.Name = name
		switch p.Region {
		case domain.RegionUS, domain.RegionINTL:
		case "":
			p.Region = domain.RegionINTL
		default:
			return nil, fmt.Errorf("source %s: unknown region %q", name, p.Region)
		}
		if p.Quota <= 0 {
			p.Quota = p.Region.DefaultQuota()
		}

		key := strings.ToLower(name)
		if _, ok := r.profiles[key]; !ok {
			r.order = append(r.order, key)
		}
		r.profiles[key] = p
	}
	return r, nil
}

// Classify returns the profile for name. Unknown names get an INTL profile
// with the INTL default quota.
func (r *Registry) Classify(name string) domain.SourceProfile {
	if p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return domain.SourceProfile{
		Name:   name,
		Region: domain.RegionINTL,
		Quota:  domain.DefaultINTLQuota,
	}
}

// Tag is the region label shown next to a candidate title.
func (r *Registry) Tag(name string) domain.Region {
	return r.Classify(name).Region
}

// Profiles returns registered profiles in configuration order.
func (r *Registry) Profiles() []domain.SourceProfile {
	out := make([]domain.SourceProfile, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.profiles[key])
	}
	return out
}

// Len reports how many sources are registered.
func (r *Registry) Len() int {
	return len(r.order)
}
