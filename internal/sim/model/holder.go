package model

import (
	"fmt"

	"endowsim/internal/protocol"
	"endowsim/internal/sim/archetypes"
)

// Holder is one token holder agent. Attributes are sampled once at
// creation and never resampled; lifecycle is active -> exited, one-way.
type Holder struct {
	ID        int
	Archetype string

	MissionAlignment float64
	Engagement       float64
	PriceSensitivity float64
	HoldHorizon      float64
	YieldThreshold   float64

	RSCHeld    float64
	InitialRSC float64
	// Consecutive weeks held; non-decreasing while active.
	WeeksHeld int

	Credits float64
	// Credits earned in the most recent earn phase; feeds credit pressure.
	WeeklyEarned float64

	Satisfaction  float64
	TotalDeployed float64
	TotalBurned   float64
	Deployments   []Deployment

	Active      bool
	EnteredWeek int
	ExitedWeek  int // 0 while active
}

// Deployment records a single credit deployment.
type Deployment struct {
	Week       int
	ProposalID int
	Credits    float64
	Excess     float64
	Burned     float64
}

func newHolder(id int, week int, p archetypes.Params, rscUnit float64) *Holder {
	return &Holder{
		ID:               id,
		Archetype:        p.Archetype,
		MissionAlignment: p.MissionAlignment,
		Engagement:       p.Engagement,
		PriceSensitivity: p.PriceSensitivity,
		HoldHorizon:      p.HoldHorizon,
		YieldThreshold:   p.YieldThreshold,
		RSCHeld:          roundUnit(p.RSC, rscUnit),
		InitialRSC:       roundUnit(p.RSC, rscUnit),
		Satisfaction:     1.0,
		Active:           true,
		EnteredWeek:      week,
	}
}

func (h *Holder) view(tier string, multiplier float64) protocol.HolderView {
	return protocol.HolderView{
		ID:               fmt.Sprintf("H%d", h.ID),
		Archetype:        h.Archetype,
		Active:           h.Active,
		MissionAlignment: h.MissionAlignment,
		Engagement:       h.Engagement,
		PriceSensitivity: h.PriceSensitivity,
		HoldHorizon:      h.HoldHorizon,
		Satisfaction:     h.Satisfaction,
		RSCHeld:          h.RSCHeld,
		InitialRSC:       h.InitialRSC,
		WeeksHeld:        h.WeeksHeld,
		Tier:             tier,
		Multiplier:       multiplier,
		YieldThreshold:   h.YieldThreshold,
		Credits:          h.Credits,
		TotalDeployed:    h.TotalDeployed,
		TotalBurned:      h.TotalBurned,
		DeploymentsCount: len(h.Deployments),
		EnteredWeek:      h.EnteredWeek,
		ExitedWeek:       h.ExitedWeek,
	}
}
