// Package behavior holds the pure per-holder decision functions.
// Each maps holder attributes plus environment readings to a probability;
// none of them draws randomness or mutates state, so each is testable
// without running a full step.
package behavior

import (
	"math"

	"endowsim/internal/sim/tuning"
)

func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// CreditPressure measures how far a holder's unspent credit balance has
// run ahead of its own weekly earning. Zero when the balance equals
// pivot weeks of earning; positive beyond it.
func CreditPressure(credits, weeklyEarned float64, b tuning.Behavior) float64 {
	weekly := weeklyEarned
	if weekly < b.PressureFloor {
		weekly = b.PressureFloor
	}
	ratio := credits / (weekly * b.PressurePivotWeeks)
	return b.PressureSlope * (ratio - 1)
}

// DeployProbability is the chance an active holder deploys its entire
// credit balance this week. deployProb is the scenario's configured
// deploy_probability; it scales the result relative to the baseline so
// the default leaves behavior unchanged.
func DeployProbability(engagement, credits, weeklyEarned, deployProb float64, b tuning.Behavior) float64 {
	if credits <= 0 {
		return 0
	}
	base := engagement * b.EngagementScale
	if base > b.EngagementScale {
		base = b.EngagementScale
	}
	boost := Sigmoid(CreditPressure(credits, weeklyEarned, b))
	scale := deployProb / b.DeployBaseline
	return Clamp((base+boost)*scale, 0, b.DeployProbCap)
}

// ExitProbability is the chance an active holder leaves the system this
// week. Zero whenever the current yield meets the holder's personal
// threshold; otherwise it grows with the relative gap, damped by the
// holder's hold horizon.
func ExitProbability(currentAPY, yieldThreshold, priceSensitivity, holdHorizon float64, b tuning.Behavior) float64 {
	if yieldThreshold <= 0 || currentAPY >= yieldThreshold {
		return 0
	}
	gap := (yieldThreshold - currentAPY) / yieldThreshold
	p := gap * priceSensitivity * b.ExitPressureScale * (1 - holdHorizon*b.HoldHorizonDamping)
	return Clamp(p, 0, 1)
}

// EntrantSpawnProbability is the chance that at least one new entrant
// joins this week. Nonzero only when the current yield clears the entry
// threshold (the scenario threshold mean times the configured margin);
// the probability is proportional to the gap above it, saturating at
// SpawnScale.
func EntrantSpawnProbability(currentAPY, yieldThresholdMean float64, e tuning.Entry) float64 {
	threshold := yieldThresholdMean * e.ThresholdMargin
	if threshold <= 0 || currentAPY <= threshold {
		return 0
	}
	attractiveness := (currentAPY - threshold) / threshold
	if attractiveness > 1 {
		attractiveness = 1
	}
	return attractiveness * e.SpawnScale
}
