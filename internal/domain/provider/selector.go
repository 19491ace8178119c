package provider

import (
	"math/rand"
	"sync"
)

// Selector picks providers by weighted-random draw. The random source is
// injected so selection is deterministic under test; a mutex guards it because
// *rand.Rand is not safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

func (s *Selector) draw(total int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(total)
}

// Pick returns a single provider chosen with probability proportional to its
// weight, or nil when no active provider with positive weight exists.
// Inactive and zero-weight providers are never picked.
func (s *Selector) Pick(providers []Provider) *Provider {
	eligible := make([]Provider, 0, len(providers))
	total := 0
	for _, p := range providers {
		if !p.IsActive || p.Weight <= 0 {
			continue
		}
		eligible = append(eligible, p)
		total += p.Weight
	}
	if total == 0 {
		return nil
	}

	r := s.draw(total)
	cumulative := 0
	for i := range eligible {
		cumulative += eligible[i].Weight
		if r < cumulative {
			picked := eligible[i]
			return &picked
		}
	}
	// unreachable: cumulative reaches total and r < total
	picked := eligible[len(eligible)-1]
	return &picked
}

// Rank orders providers for fallback by repeated weighted draws without
// replacement. The first element is the preferred provider; later elements are
// tried only after earlier ones fail. Inactive and zero-weight providers are
// excluded entirely.
func (s *Selector) Rank(providers []Provider) []Provider {
	remaining := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsActive && p.Weight > 0 {
			remaining = append(remaining, p)
		}
	}

	ranked := make([]Provider, 0, len(remaining))
	for len(remaining) > 0 {
		picked := s.Pick(remaining)
		if picked == nil {
			break
		}
		ranked = append(ranked, *picked)
		for i := range remaining {
			if remaining[i].ID == picked.ID {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return ranked
}
