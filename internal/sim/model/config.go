package model

import (
	"errors"
	"fmt"

	"endowsim/internal/sim/emission"
)

// Failure consequence policies for failed proposals.
const (
	FailureNothing          = "nothing"
	FailurePartialRefund    = "partial_refund"
	FailureSatisfactionOnly = "satisfaction_only"
)

// MixTolerance is how far archetype_mix fractions may drift from 1.
const MixTolerance = 1e-3

// ErrNotInitialized is returned by callers that hold no model yet; the
// engine itself cannot be observed in that state.
var ErrNotInitialized = errors.New("model not initialized")

// ConfigError reports an invalid initialization parameter. Only invalid
// configuration is fatal; numeric edge cases during a run fall back to
// documented degenerate behavior instead.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type Config struct {
	Seed int64 `json:"seed"`

	NumHolders   int `json:"num_holders"`
	NumProposals int `json:"num_proposals"`

	BurnRate          float64 `json:"burn_rate"`
	SuccessRate       float64 `json:"success_rate"`
	FundingTargetMin  float64 `json:"funding_target_min"`
	FundingTargetMax  float64 `json:"funding_target_max"`
	DeployProbability float64 `json:"deploy_probability"`

	ArchetypeMix       map[string]float64 `json:"archetype_mix"`
	YieldThresholdMean float64            `json:"yield_threshold_mean"`

	// Fraction of circulating supply the initial population is scaled to
	// hold. Zero leaves the sampled holdings unscaled.
	InitialParticipationRate float64 `json:"initial_participation_rate"`

	CreditExpiryEnabled   bool    `json:"credit_expiry_enabled"`
	CreditExpiryWeeks     int     `json:"credit_expiry_weeks"`
	FailureMode           string  `json:"failure_mode"`
	PartialRefundFraction float64 `json:"partial_refund_fraction"`

	Emission emission.Params `json:"emission"`
}

func DefaultConfig() Config {
	return Config{
		Seed:              1337,
		NumHolders:        100,
		NumProposals:      10,
		BurnRate:          0.02,
		SuccessRate:       0.80,
		FundingTargetMin:  1_000,
		FundingTargetMax:  10_000,
		DeployProbability: 0.3,
		ArchetypeMix: map[string]float64{
			"believer":     0.25,
			"yield_seeker": 0.35,
			"institution":  0.15,
			"speculator":   0.25,
		},
		YieldThresholdMean:       0.08,
		InitialParticipationRate: 0.30,
		CreditExpiryEnabled:      false,
		CreditExpiryWeeks:        8,
		FailureMode:              FailureNothing,
		PartialRefundFraction:    0.5,
		Emission:                 emission.DefaultParams(),
	}
}

func (c Config) validate() error {
	if c.NumHolders <= 0 {
		return configErrorf("num_holders", "must be > 0, got %d", c.NumHolders)
	}
	if c.NumProposals < 0 {
		return configErrorf("num_proposals", "must be >= 0, got %d", c.NumProposals)
	}
	if c.BurnRate < 0 || c.BurnRate > 1 {
		return configErrorf("burn_rate", "must be in [0, 1], got %v", c.BurnRate)
	}
	if c.SuccessRate < 0 || c.SuccessRate > 1 {
		return configErrorf("success_rate", "must be in [0, 1], got %v", c.SuccessRate)
	}
	if c.FundingTargetMin <= 0 {
		return configErrorf("funding_target_min", "must be > 0, got %v", c.FundingTargetMin)
	}
	if c.FundingTargetMax < c.FundingTargetMin {
		return configErrorf("funding_target_max", "must be >= funding_target_min, got %v", c.FundingTargetMax)
	}
	if c.DeployProbability <= 0 || c.DeployProbability > 1 {
		return configErrorf("deploy_probability", "must be in (0, 1], got %v", c.DeployProbability)
	}
	if c.YieldThresholdMean <= 0 {
		return configErrorf("yield_threshold_mean", "must be > 0, got %v", c.YieldThresholdMean)
	}
	if c.InitialParticipationRate < 0 || c.InitialParticipationRate > 1 {
		return configErrorf("initial_participation_rate", "must be in [0, 1], got %v", c.InitialParticipationRate)
	}
	if c.CreditExpiryEnabled && c.CreditExpiryWeeks <= 0 {
		return configErrorf("credit_expiry_weeks", "must be > 0 when expiry is enabled, got %d", c.CreditExpiryWeeks)
	}
	switch c.FailureMode {
	case FailureNothing, FailurePartialRefund, FailureSatisfactionOnly:
	default:
		return configErrorf("failure_mode", "must be one of nothing, partial_refund, satisfaction_only; got %q", c.FailureMode)
	}
	if c.PartialRefundFraction < 0 || c.PartialRefundFraction > 1 {
		return configErrorf("partial_refund_fraction", "must be in [0, 1], got %v", c.PartialRefundFraction)
	}
	if _, err := emission.New(c.Emission); err != nil {
		return &ConfigError{Field: "emission", Reason: err.Error()}
	}
	return nil
}
