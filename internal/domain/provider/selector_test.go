package provider_test

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
)

func testProvider(name string, weight int, active bool) provider.Provider {
	return provider.Provider{
		ID:       uuid.New(),
		Name:     name,
		Category: provider.CategoryAirtime,
		Weight:   weight,
		IsActive: active,
	}
}

func TestSelectorPickEmpty(t *testing.T) {
	s := provider.NewSelector(rand.New(rand.NewSource(1)))

	if got := s.Pick(nil); got != nil {
		t.Fatalf("expected nil pick from empty set, got %v", got)
	}

	inactive := []provider.Provider{
		testProvider("a", 50, false),
		testProvider("b", 50, false),
	}
	if got := s.Pick(inactive); got != nil {
		t.Fatalf("expected nil pick when all providers inactive, got %v", got)
	}
}

func TestSelectorNeverPicksInactiveOrZeroWeight(t *testing.T) {
	s := provider.NewSelector(rand.New(rand.NewSource(42)))

	providers := []provider.Provider{
		testProvider("active", 1, true),
		testProvider("zero-weight", 0, true),
		testProvider("inactive", 1000, false),
	}

	for i := 0; i < 10000; i++ {
		picked := s.Pick(providers)
		if picked == nil {
			t.Fatal("expected a pick while an eligible provider exists")
		}
		if picked.Name != "active" {
			t.Fatalf("trial %d picked ineligible provider %q", i, picked.Name)
		}
	}
}

func TestSelectorDistributionProportionalToWeight(t *testing.T) {
	s := provider.NewSelector(rand.New(rand.NewSource(7)))

	providers := []provider.Provider{
		testProvider("heavy", 50, true),
		testProvider("medium", 30, true),
		testProvider("light", 20, true),
	}

	const trials = 100000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		picked := s.Pick(providers)
		counts[picked.Name]++
	}

	// Loose statistical bounds: expected shares are 0.5 / 0.3 / 0.2.
	checks := map[string]float64{"heavy": 0.5, "medium": 0.3, "light": 0.2}
	for name, want := range checks {
		got := float64(counts[name]) / trials
		if got < want-0.02 || got > want+0.02 {
			t.Errorf("provider %s: expected share ~%.2f, got %.4f", name, want, got)
		}
	}
}

func TestSelectorRankCoversAllEligible(t *testing.T) {
	s := provider.NewSelector(rand.New(rand.NewSource(3)))

	providers := []provider.Provider{
		testProvider("a", 50, true),
		testProvider("b", 30, true),
		testProvider("c", 20, true),
		testProvider("d", 10, false),
		testProvider("e", 0, true),
	}

	ranked := s.Rank(providers)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked providers, got %d", len(ranked))
	}

	seen := map[string]bool{}
	for _, p := range ranked {
		if seen[p.Name] {
			t.Fatalf("provider %s ranked twice", p.Name)
		}
		seen[p.Name] = true
		if !p.IsActive || p.Weight <= 0 {
			t.Fatalf("ineligible provider %s in ranking", p.Name)
		}
	}
}

func TestSelectorRankFirstPositionWeighted(t *testing.T) {
	s := provider.NewSelector(rand.New(rand.NewSource(11)))

	providers := []provider.Provider{
		testProvider("heavy", 90, true),
		testProvider("light", 10, true),
	}

	const trials = 10000
	heavyFirst := 0
	for i := 0; i < trials; i++ {
		ranked := s.Rank(providers)
		if ranked[0].Name == "heavy" {
			heavyFirst++
		}
	}

	share := float64(heavyFirst) / trials
	if share < 0.87 || share > 0.93 {
		t.Errorf("expected heavy provider first ~90%% of the time, got %.4f", share)
	}
}
