package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning carries the empirically chosen model constants. The probability
// coefficients are tuning values, not derived quantities; they are kept
// here so scenarios can override them without touching the engine.
type Tuning struct {
	// Smallest RSC unit all token mutations are rounded to.
	RSCUnit float64 `yaml:"rsc_unit"`

	Behavior  Behavior  `yaml:"behavior"`
	Entry     Entry     `yaml:"entry"`
	Proposals Proposals `yaml:"proposals"`

	// Time-weight tiers ordered by max_weeks; max_weeks == 0 means
	// unbounded and is only valid on the last tier. A holder at exactly
	// max_weeks belongs to the next tier.
	TimeWeights []Tier `yaml:"time_weights"`

	Digest string `yaml:"-"`
}

type Behavior struct {
	EngagementScale    float64 `yaml:"engagement_scale"`     // deploy base prob per unit engagement
	DeployBaseline     float64 `yaml:"deploy_baseline"`      // deploy_probability normalization point
	DeployProbCap      float64 `yaml:"deploy_prob_cap"`      // hard cap on final deploy probability
	PressurePivotWeeks float64 `yaml:"pressure_pivot_weeks"` // weeks of earning where pressure centers
	PressureSlope      float64 `yaml:"pressure_slope"`       // sigmoid steepness around the pivot
	PressureFloor      float64 `yaml:"pressure_floor"`       // minimum weekly earning used in the ratio
	ExitPressureScale  float64 `yaml:"exit_pressure_scale"`
	HoldHorizonDamping float64 `yaml:"hold_horizon_damping"`
	MaxBurnFraction    float64 `yaml:"max_burn_fraction"` // burn cap per deploy, fraction of holder RSC
	SatisfactionBlend  float64 `yaml:"satisfaction_blend"`
	SatisfactionFloor  float64 `yaml:"satisfaction_floor"`
	MinYieldThreshold  float64 `yaml:"min_yield_threshold"`
}

type Entry struct {
	Archetype       string  `yaml:"archetype"`
	ThresholdMargin float64 `yaml:"threshold_margin"` // entry threshold = mean * margin
	SpawnScale      float64 `yaml:"spawn_scale"`      // spawn prob per unit attractiveness
	MinEntrants     int     `yaml:"min_entrants"`
	MaxEntrants     int     `yaml:"max_entrants"`
}

type Proposals struct {
	ReplenishFloor int     `yaml:"replenish_floor"`
	ReplenishProb  float64 `yaml:"replenish_prob"`
}

type Tier struct {
	Label      string  `yaml:"label" json:"label"`
	MaxWeeks   int     `yaml:"max_weeks" json:"max_weeks"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

func Defaults() Tuning {
	return Tuning{
		RSCUnit: 0.01,
		Behavior: Behavior{
			EngagementScale:    0.6,
			DeployBaseline:     0.3,
			DeployProbCap:      0.95,
			PressurePivotWeeks: 4,
			PressureSlope:      2,
			PressureFloor:      1,
			ExitPressureScale:  0.15,
			HoldHorizonDamping: 0.8,
			MaxBurnFraction:    0.1,
			SatisfactionBlend:  0.2,
			SatisfactionFloor:  0.1,
			MinYieldThreshold:  0.005,
		},
		Entry: Entry{
			Archetype:       "yield_seeker",
			ThresholdMargin: 1.1,
			SpawnScale:      0.15,
			MinEntrants:     1,
			MaxEntrants:     3,
		},
		Proposals: Proposals{
			ReplenishFloor: 5,
			ReplenishProb:  0.3,
		},
		TimeWeights: []Tier{
			{Label: "New", MaxWeeks: 4, Multiplier: 1.00},
			{Label: "Holder", MaxWeeks: 52, Multiplier: 1.15},
			{Label: "LongTerm", MaxWeeks: 0, Multiplier: 1.20},
		},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	sum := sha256.Sum256(raw)
	t.Digest = hex.EncodeToString(sum[:])
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.RSCUnit <= 0 {
		return fmt.Errorf("tuning: rsc_unit must be > 0, got %v", t.RSCUnit)
	}
	b := t.Behavior
	if b.EngagementScale <= 0 || b.EngagementScale > 1 {
		return fmt.Errorf("tuning: behavior.engagement_scale must be in (0, 1], got %v", b.EngagementScale)
	}
	if b.DeployBaseline <= 0 || b.DeployBaseline > 1 {
		return fmt.Errorf("tuning: behavior.deploy_baseline must be in (0, 1], got %v", b.DeployBaseline)
	}
	if b.DeployProbCap <= 0 || b.DeployProbCap > 1 {
		return fmt.Errorf("tuning: behavior.deploy_prob_cap must be in (0, 1], got %v", b.DeployProbCap)
	}
	if b.PressurePivotWeeks <= 0 {
		return fmt.Errorf("tuning: behavior.pressure_pivot_weeks must be > 0, got %v", b.PressurePivotWeeks)
	}
	if b.MaxBurnFraction <= 0 || b.MaxBurnFraction > 1 {
		return fmt.Errorf("tuning: behavior.max_burn_fraction must be in (0, 1], got %v", b.MaxBurnFraction)
	}
	if b.HoldHorizonDamping < 0 || b.HoldHorizonDamping > 1 {
		return fmt.Errorf("tuning: behavior.hold_horizon_damping must be in [0, 1], got %v", b.HoldHorizonDamping)
	}
	if t.Entry.Archetype == "" {
		return fmt.Errorf("tuning: entry.archetype must be set")
	}
	if t.Entry.ThresholdMargin < 1 {
		return fmt.Errorf("tuning: entry.threshold_margin must be >= 1, got %v", t.Entry.ThresholdMargin)
	}
	if t.Entry.MinEntrants < 1 || t.Entry.MaxEntrants < t.Entry.MinEntrants {
		return fmt.Errorf("tuning: entry.min_entrants/max_entrants must satisfy 1 <= min <= max")
	}
	if t.Proposals.ReplenishProb < 0 || t.Proposals.ReplenishProb > 1 {
		return fmt.Errorf("tuning: proposals.replenish_prob must be in [0, 1], got %v", t.Proposals.ReplenishProb)
	}
	return validateTiers(t.TimeWeights)
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tuning: time_weights must have at least one tier")
	}
	prev := 0
	for i, tier := range tiers {
		last := i == len(tiers)-1
		if tier.Label == "" {
			return fmt.Errorf("tuning: time_weights[%d]: empty label", i)
		}
		if tier.Multiplier <= 0 {
			return fmt.Errorf("tuning: time_weights[%d]: multiplier must be > 0, got %v", i, tier.Multiplier)
		}
		if last {
			if tier.MaxWeeks != 0 {
				return fmt.Errorf("tuning: time_weights: last tier must be unbounded (max_weeks 0)")
			}
			continue
		}
		if tier.MaxWeeks <= prev {
			return fmt.Errorf("tuning: time_weights[%d]: max_weeks must be increasing, got %d", i, tier.MaxWeeks)
		}
		prev = tier.MaxWeeks
	}
	return nil
}

// TierFor maps a holding duration to its multiplier tier. Boundary weeks
// belong to the higher tier: with the default table, weeks_held == 4 is
// already "Holder".
func (t Tuning) TierFor(weeksHeld int) Tier {
	for _, tier := range t.TimeWeights {
		if tier.MaxWeeks == 0 || weeksHeld < tier.MaxWeeks {
			return tier
		}
	}
	return t.TimeWeights[len(t.TimeWeights)-1]
}
