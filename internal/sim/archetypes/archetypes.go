// Package archetypes holds the behavioral archetype tables and the
// parameter sampling used to build holder populations. Archetypes are
// data, not code: attribute ranges load from configs/archetypes.json.
package archetypes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
)

// Range is a closed interval sampled uniformly.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) valid() bool { return r.Max >= r.Min }

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

type Def struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	MissionAlignment Range `json:"mission_alignment"`
	Engagement       Range `json:"engagement"`
	PriceSensitivity Range `json:"price_sensitivity"`
	HoldHorizon      Range `json:"hold_horizon"`
	RSCRange         Range `json:"rsc_range"`

	// Offset applied to the scenario's yield_threshold_mean when sampling
	// a holder's personal exit threshold.
	YieldThresholdOffset float64 `json:"yield_threshold_offset"`
}

type Catalog struct {
	ByID   map[string]Def
	Order  []string // stable id order for deterministic iteration
	Digest string
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []Def
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("archetypes.json: %w", err)
	}
	c := &Catalog{ByID: make(map[string]Def, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("archetypes.json: empty id")
		}
		if _, dup := c.ByID[d.ID]; dup {
			return nil, fmt.Errorf("archetypes.json: duplicate id %q", d.ID)
		}
		for _, rr := range []struct {
			name string
			r    Range
		}{
			{"mission_alignment", d.MissionAlignment},
			{"engagement", d.Engagement},
			{"price_sensitivity", d.PriceSensitivity},
			{"hold_horizon", d.HoldHorizon},
			{"rsc_range", d.RSCRange},
		} {
			if !rr.r.valid() || rr.r.Min < 0 {
				return nil, fmt.Errorf("archetypes.json: %s.%s: bad range [%v, %v]", d.ID, rr.name, rr.r.Min, rr.r.Max)
			}
		}
		c.ByID[d.ID] = d
		c.Order = append(c.Order, d.ID)
	}
	if len(c.Order) == 0 {
		return nil, fmt.Errorf("archetypes.json: no archetypes defined")
	}
	sort.Strings(c.Order)
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

// Params are the per-holder attributes sampled once at creation and
// never resampled.
type Params struct {
	Archetype        string
	MissionAlignment float64
	Engagement       float64
	PriceSensitivity float64
	HoldHorizon      float64
	RSC              float64
	YieldThreshold   float64
}

// Sample draws one holder's attributes from the archetype's ranges.
// The personal exit threshold is the scenario mean shifted by the
// archetype offset, floored at minThreshold.
func (d Def) Sample(rng *rand.Rand, thresholdMean, minThreshold float64) Params {
	threshold := thresholdMean + d.YieldThresholdOffset
	if threshold < minThreshold {
		threshold = minThreshold
	}
	return Params{
		Archetype:        d.ID,
		MissionAlignment: d.MissionAlignment.sample(rng),
		Engagement:       d.Engagement.sample(rng),
		PriceSensitivity: d.PriceSensitivity.sample(rng),
		HoldHorizon:      d.HoldHorizon.sample(rng),
		RSC:              d.RSCRange.sample(rng),
		YieldThreshold:   threshold,
	}
}

// ValidateMix checks that an archetype mix names known archetypes, has
// no negative fractions, and sums to 1 within tolerance.
func (c *Catalog) ValidateMix(mix map[string]float64, tol float64) error {
	if len(mix) == 0 {
		return fmt.Errorf("archetype_mix: empty")
	}
	sum := 0.0
	for id, frac := range mix {
		if _, ok := c.ByID[id]; !ok {
			return fmt.Errorf("archetype_mix: unknown archetype %q", id)
		}
		if frac < 0 {
			return fmt.Errorf("archetype_mix: %s: negative fraction %v", id, frac)
		}
		sum += frac
	}
	if sum < 1-tol || sum > 1+tol {
		return fmt.Errorf("archetype_mix: fractions sum to %v, want 1", sum)
	}
	return nil
}

// SplitCounts apportions n holders across the mix. Fractions are rounded
// largest-first; the smallest fraction absorbs the remainder so the
// counts always sum to n.
func SplitCounts(mix map[string]float64, n int) map[string]int {
	type entry struct {
		id   string
		frac float64
	}
	entries := make([]entry, 0, len(mix))
	for id, frac := range mix {
		entries = append(entries, entry{id, frac})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].frac != entries[j].frac {
			return entries[i].frac > entries[j].frac
		}
		return entries[i].id < entries[j].id
	})

	counts := make(map[string]int, len(entries))
	remaining := n
	for _, e := range entries[:len(entries)-1] {
		k := int(float64(n)*e.frac + 0.5)
		if k > remaining {
			k = remaining
		}
		counts[e.id] = k
		remaining -= k
	}
	last := entries[len(entries)-1].id
	if remaining < 0 {
		remaining = 0
	}
	counts[last] = remaining
	return counts
}
