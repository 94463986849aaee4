package archetypes

import (
	"math/rand"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	c, err := Load("../../../configs/archetypes.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Digest == "" {
		t.Fatalf("digest not set")
	}
	for _, id := range []string{"believer", "yield_seeker", "institution", "speculator"} {
		if _, ok := c.ByID[id]; !ok {
			t.Fatalf("missing archetype %q", id)
		}
	}
	// Order is sorted for deterministic iteration.
	for i := 1; i < len(c.Order); i++ {
		if c.Order[i-1] >= c.Order[i] {
			t.Fatalf("order not sorted: %v", c.Order)
		}
	}
}

func TestSampleWithinRanges(t *testing.T) {
	c, err := Load("../../../configs/archetypes.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	def := c.ByID["yield_seeker"]
	for i := 0; i < 200; i++ {
		p := def.Sample(rng, 0.08, 0.005)
		if p.Engagement < def.Engagement.Min || p.Engagement > def.Engagement.Max {
			t.Fatalf("engagement %v outside [%v, %v]", p.Engagement, def.Engagement.Min, def.Engagement.Max)
		}
		if p.RSC < def.RSCRange.Min || p.RSC > def.RSCRange.Max {
			t.Fatalf("rsc %v outside [%v, %v]", p.RSC, def.RSCRange.Min, def.RSCRange.Max)
		}
		if p.YieldThreshold != 0.08+def.YieldThresholdOffset {
			t.Fatalf("yield threshold = %v, want %v", p.YieldThreshold, 0.08+def.YieldThresholdOffset)
		}
	}
}

func TestSampleThresholdFloor(t *testing.T) {
	c, err := Load("../../../configs/archetypes.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	// institution carries a -0.06 offset; a 0.02 mean would go negative
	// without the floor.
	p := c.ByID["institution"].Sample(rng, 0.02, 0.005)
	if p.YieldThreshold != 0.005 {
		t.Fatalf("yield threshold = %v, want floor 0.005", p.YieldThreshold)
	}
}

func TestValidateMix(t *testing.T) {
	c, err := Load("../../../configs/archetypes.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	good := map[string]float64{"believer": 0.25, "yield_seeker": 0.35, "institution": 0.15, "speculator": 0.25}
	if err := c.ValidateMix(good, 1e-3); err != nil {
		t.Fatalf("good mix rejected: %v", err)
	}
	if err := c.ValidateMix(map[string]float64{"believer": 0.5}, 1e-3); err == nil {
		t.Fatalf("want error for mix not summing to 1")
	}
	if err := c.ValidateMix(map[string]float64{"ghost": 1.0}, 1e-3); err == nil {
		t.Fatalf("want error for unknown archetype")
	}
}

func TestSplitCountsSumAndProportions(t *testing.T) {
	mix := map[string]float64{"believer": 0.25, "yield_seeker": 0.35, "institution": 0.15, "speculator": 0.25}
	for _, n := range []int{1, 7, 100, 200, 1003} {
		counts := SplitCounts(mix, n)
		sum := 0
		for _, k := range counts {
			if k < 0 {
				t.Fatalf("n=%d: negative count in %v", n, counts)
			}
			sum += k
		}
		if sum != n {
			t.Fatalf("n=%d: counts sum to %d: %v", n, sum, counts)
		}
	}

	// At n=200 every archetype should land within 5% of its fraction.
	counts := SplitCounts(mix, 200)
	for id, frac := range mix {
		got := float64(counts[id]) / 200
		if got < frac-0.05 || got > frac+0.05 {
			t.Fatalf("%s: fraction %v, want %v within 0.05", id, got, frac)
		}
	}
}
