package behavior

import (
	"math"
	"testing"

	"endowsim/internal/sim/tuning"
)

func TestCreditPressureCentersAtPivot(t *testing.T) {
	b := tuning.Defaults().Behavior
	// Balance equal to pivot weeks of earning reads as zero pressure.
	if got := CreditPressure(400, 100, b); math.Abs(got) > 1e-9 {
		t.Fatalf("pressure at pivot = %v, want 0", got)
	}
	if got := CreditPressure(800, 100, b); got <= 0 {
		t.Fatalf("pressure above pivot = %v, want > 0", got)
	}
	if got := CreditPressure(100, 100, b); got >= 0 {
		t.Fatalf("pressure below pivot = %v, want < 0", got)
	}
}

func TestCreditPressureFlooredEarning(t *testing.T) {
	b := tuning.Defaults().Behavior
	// Zero weekly earning must not divide by zero; the floor stands in.
	got := CreditPressure(400, 0, b)
	want := CreditPressure(400, b.PressureFloor, b)
	if got != want {
		t.Fatalf("pressure with zero earning = %v, want %v", got, want)
	}
}

func TestDeployProbabilityBounds(t *testing.T) {
	b := tuning.Defaults().Behavior
	if got := DeployProbability(0.9, 0, 10, 0.3, b); got != 0 {
		t.Fatalf("no credits should mean probability 0, got %v", got)
	}
	// Saturated engagement plus enormous backlog still respects the cap.
	got := DeployProbability(1.0, 1e9, 1, 1.0, b)
	if got != b.DeployProbCap {
		t.Fatalf("probability = %v, want capped at %v", got, b.DeployProbCap)
	}
	for _, eng := range []float64{0, 0.2, 0.5, 0.8, 1.0} {
		p := DeployProbability(eng, 100, 100, 0.3, b)
		if p < 0 || p > b.DeployProbCap {
			t.Fatalf("engagement %v: probability %v out of [0, %v]", eng, p, b.DeployProbCap)
		}
	}
}

func TestDeployProbabilityScalesWithConfig(t *testing.T) {
	b := tuning.Defaults().Behavior
	base := DeployProbability(0.2, 100, 100, 0.3, b)
	double := DeployProbability(0.2, 100, 100, 0.6, b)
	if math.Abs(double-2*base) > 1e-9 {
		t.Fatalf("doubling deploy_probability: %v, want %v", double, 2*base)
	}
}

func TestExitProbabilityZeroAboveThreshold(t *testing.T) {
	b := tuning.Defaults().Behavior
	if got := ExitProbability(0.10, 0.08, 1.0, 0.0, b); got != 0 {
		t.Fatalf("apy above threshold: probability %v, want 0", got)
	}
	if got := ExitProbability(0.08, 0.08, 1.0, 0.0, b); got != 0 {
		t.Fatalf("apy equal to threshold: probability %v, want 0", got)
	}
}

func TestExitProbabilityGrowsWithGap(t *testing.T) {
	b := tuning.Defaults().Behavior
	small := ExitProbability(0.07, 0.08, 1.0, 0.0, b)
	large := ExitProbability(0.02, 0.08, 1.0, 0.0, b)
	if !(0 < small && small < large && large <= 1) {
		t.Fatalf("want 0 < %v < %v <= 1", small, large)
	}
}

func TestExitProbabilityDampedByHorizon(t *testing.T) {
	b := tuning.Defaults().Behavior
	flighty := ExitProbability(0.02, 0.08, 1.0, 0.0, b)
	patient := ExitProbability(0.02, 0.08, 1.0, 1.0, b)
	if patient >= flighty {
		t.Fatalf("hold horizon should damp: %v >= %v", patient, flighty)
	}
	wantPatient := flighty * (1 - b.HoldHorizonDamping)
	if math.Abs(patient-wantPatient) > 1e-9 {
		t.Fatalf("damped probability = %v, want %v", patient, wantPatient)
	}
}

func TestEntrantSpawnProbability(t *testing.T) {
	e := tuning.Defaults().Entry
	// Entry threshold is mean * margin; at or below it nobody shows up.
	if got := EntrantSpawnProbability(0.08, 0.08, e); got != 0 {
		t.Fatalf("apy at mean: probability %v, want 0", got)
	}
	if got := EntrantSpawnProbability(0.088, 0.08, e); got != 0 {
		t.Fatalf("apy at threshold: probability %v, want 0", got)
	}
	low := EntrantSpawnProbability(0.10, 0.08, e)
	high := EntrantSpawnProbability(0.15, 0.08, e)
	if !(0 < low && low < high) {
		t.Fatalf("want 0 < %v < %v", low, high)
	}
	// Attractiveness saturates at 1, so probability caps at SpawnScale.
	if got := EntrantSpawnProbability(10, 0.08, e); got != e.SpawnScale {
		t.Fatalf("saturated probability = %v, want %v", got, e.SpawnScale)
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("sigmoid(0) = %v, want 0.5", got)
	}
	if got := Sigmoid(50); got <= 0.99 {
		t.Fatalf("sigmoid(50) = %v, want near 1", got)
	}
	if got := Sigmoid(-50); got >= 0.01 {
		t.Fatalf("sigmoid(-50) = %v, want near 0", got)
	}
}
