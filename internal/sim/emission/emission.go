// Package emission computes the decaying token-emission schedule.
// The schedule is a pure function of elapsed time: nothing in the model
// feeds back into it.
package emission

import (
	"fmt"
	"math"
)

const WeeksPerYear = 52

type Params struct {
	AnnualEmission0 float64 `json:"annual_emission_0" yaml:"annual_emission_0"`
	HalfLifeYears   float64 `json:"half_life_years" yaml:"half_life_years"`

	// Circulating supply at week 0; grows by cumulative emissions.
	CirculatingSupply0 float64 `json:"circulating_supply_0" yaml:"circulating_supply_0"`
}

// DefaultParams returns the published schedule: E(t) = 9.5M / 2^(t/64).
func DefaultParams() Params {
	return Params{
		AnnualEmission0:    9_500_000,
		HalfLifeYears:      64,
		CirculatingSupply0: 134_157_343,
	}
}

type Engine struct {
	p Params
}

func New(p Params) (Engine, error) {
	if p.AnnualEmission0 <= 0 {
		return Engine{}, fmt.Errorf("emission: annual_emission_0 must be > 0, got %v", p.AnnualEmission0)
	}
	if p.HalfLifeYears <= 0 {
		return Engine{}, fmt.Errorf("emission: half_life_years must be > 0, got %v", p.HalfLifeYears)
	}
	if p.CirculatingSupply0 <= 0 {
		return Engine{}, fmt.Errorf("emission: circulating_supply_0 must be > 0, got %v", p.CirculatingSupply0)
	}
	return Engine{p: p}, nil
}

func (e Engine) Params() Params { return e.p }

// AnnualAt returns the annual emission rate at the given week.
// Exactly AnnualEmission0 at week 0.
func (e Engine) AnnualAt(week int) float64 {
	tYears := float64(week) / WeeksPerYear
	return e.p.AnnualEmission0 / math.Pow(2, tYears/e.p.HalfLifeYears)
}

// WeeklyAt returns the emission budget for a single week.
func (e Engine) WeeklyAt(week int) float64 {
	return e.AnnualAt(week) / WeeksPerYear
}
