package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.Digest == "" {
		t.Fatalf("digest not set")
	}
	def := Defaults()
	if tune.RSCUnit != def.RSCUnit {
		t.Fatalf("rsc_unit = %v, want %v", tune.RSCUnit, def.RSCUnit)
	}
	if tune.Behavior != def.Behavior {
		t.Fatalf("behavior = %+v, want %+v", tune.Behavior, def.Behavior)
	}
	if tune.Entry != def.Entry {
		t.Fatalf("entry = %+v, want %+v", tune.Entry, def.Entry)
	}
	if len(tune.TimeWeights) != len(def.TimeWeights) {
		t.Fatalf("tiers = %d, want %d", len(tune.TimeWeights), len(def.TimeWeights))
	}
	for i, tier := range tune.TimeWeights {
		if tier != def.TimeWeights[i] {
			t.Fatalf("tier %d = %+v, want %+v", i, tier, def.TimeWeights[i])
		}
	}
}

func TestLoadRejectsBadTiers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	bad := `
rsc_unit: 0.01
behavior:
  engagement_scale: 0.6
  deploy_baseline: 0.3
  deploy_prob_cap: 0.95
  pressure_pivot_weeks: 4
  max_burn_fraction: 0.1
entry:
  archetype: yield_seeker
  threshold_margin: 1.1
  min_entrants: 1
  max_entrants: 3
time_weights:
  - label: New
    max_weeks: 4
    multiplier: 1.0
  - label: Holder
    max_weeks: 52
    multiplier: 1.15
`
	// Last tier is bounded, which the schedule forbids.
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("want error for bounded last tier")
	}
}

func TestTierForBoundaries(t *testing.T) {
	tune := Defaults()
	cases := []struct {
		weeks int
		label string
	}{
		{0, "New"},
		{3, "New"},
		{4, "Holder"},
		{51, "Holder"},
		{52, "LongTerm"},
		{500, "LongTerm"},
	}
	for _, c := range cases {
		if got := tune.TierFor(c.weeks); got.Label != c.label {
			t.Fatalf("TierFor(%d) = %s, want %s", c.weeks, got.Label, c.label)
		}
	}
}

func TestValidateRejectsBadBehavior(t *testing.T) {
	tune := Defaults()
	tune.Behavior.MaxBurnFraction = 1.5
	if err := tune.Validate(); err == nil {
		t.Fatalf("want error for max_burn_fraction > 1")
	}

	tune = Defaults()
	tune.Entry.MaxEntrants = 0
	if err := tune.Validate(); err == nil {
		t.Fatalf("want error for max_entrants < min_entrants")
	}
}
