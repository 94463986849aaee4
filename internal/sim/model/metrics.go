package model

import (
	"fmt"

	"endowsim/internal/protocol"
	"endowsim/internal/sim/emission"
	"endowsim/internal/sim/tuning"
)

// appendSnapshot records the immutable aggregate view of the current
// state onto the run history and returns it.
func (m *Model) appendSnapshot() protocol.Snapshot {
	snap := protocol.Snapshot{
		Week:              m.week,
		Year:              float64(m.week) / emission.WeeksPerYear,
		TotalRSCHeld:      m.totalRSCHeld(),
		EffectiveRSC:      m.totalEffectiveRSC(),
		CirculatingSupply: m.circulatingSupply(),
		ParticipationRate: m.participationRate(),
		CurrentAPY:        m.currentAPY(),
		AnnualEmission:    m.emit.AnnualAt(m.week),
		WeeklyEmission:    m.emit.WeeklyAt(m.week),

		CreditsEarnedStep:   m.stepEarned,
		CreditsDeployedStep: m.stepDeployed,
		BurnedStep:          m.stepBurned,
		ExitsStep:           m.stepExits,
		EntriesStep:         m.stepEntries,

		Proposals:    m.proposalCounts(),
		ArchetypeRSC: make(map[string]float64, len(m.cats.Order)),
		TierCounts:   make(map[string]int, len(m.tune.TimeWeights)),
	}
	for _, h := range m.holders {
		if !h.Active {
			snap.ExitedHolders++
			continue
		}
		snap.ActiveHolders++
		snap.ArchetypeRSC[h.Archetype] += h.RSCHeld
		snap.TierCounts[m.tune.TierFor(h.WeeksHeld).Label]++
	}
	m.history = append(m.history, snap)
	return snap
}

func (m *Model) proposalCounts() protocol.ProposalCounts {
	var c protocol.ProposalCounts
	for _, p := range m.proposals {
		switch p.Status {
		case StatusOpen:
			c.Open++
		case StatusFunded:
			c.Funded++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusExpired:
			c.Expired++
		}
	}
	return c
}

// ---- read-only accessors for external collaborators ----

func (m *Model) CurrentWeek() int { return m.week }

func (m *Model) Config() Config { return m.cfg }

func (m *Model) Tuning() tuning.Tuning { return m.tune }

// State returns the latest snapshot (the week-0 snapshot before any step).
func (m *Model) State() protocol.Snapshot {
	return m.history[len(m.history)-1]
}

// History returns the append-only run history. The returned slice is a
// copy; snapshots themselves are never mutated after append.
func (m *Model) History() []protocol.Snapshot {
	return append([]protocol.Snapshot(nil), m.history...)
}

// Events returns up to limit most recent events, newest first.
func (m *Model) Events(limit int) []protocol.Event {
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]protocol.Event, 0, limit)
	for i := len(m.events) - 1; i >= len(m.events)-limit; i-- {
		out = append(out, m.events[i])
	}
	return out
}

func (m *Model) Holders() []protocol.HolderView {
	out := make([]protocol.HolderView, 0, len(m.holders))
	for _, h := range m.holders {
		tier := m.tune.TierFor(h.WeeksHeld)
		out = append(out, h.view(tier.Label, tier.Multiplier))
	}
	return out
}

func (m *Model) HolderByID(id int) (protocol.HolderView, bool) {
	h := m.holderByNum(id)
	if h == nil {
		return protocol.HolderView{}, false
	}
	tier := m.tune.TierFor(h.WeeksHeld)
	return h.view(tier.Label, tier.Multiplier), true
}

func (m *Model) Proposals() []protocol.ProposalView {
	out := make([]protocol.ProposalView, 0, len(m.proposals))
	for _, p := range m.proposals {
		out = append(out, p.view())
	}
	return out
}

func (m *Model) ProposalByID(id int) (protocol.ProposalView, bool) {
	for _, p := range m.proposals {
		if p.ID == id {
			return p.view(), true
		}
	}
	return protocol.ProposalView{}, false
}

// StepDeployments lists the deployments applied in the current week.
func (m *Model) StepDeployments() []protocol.DeploymentView {
	var out []protocol.DeploymentView
	for _, h := range m.holders {
		for _, d := range h.Deployments {
			if d.Week != m.week {
				continue
			}
			out = append(out, protocol.DeploymentView{
				HolderID:   fmt.Sprintf("H%d", h.ID),
				Archetype:  h.Archetype,
				ProposalID: fmt.Sprintf("P%d", d.ProposalID),
				Credits:    d.Credits,
				Excess:     d.Excess,
				Burned:     d.Burned,
			})
		}
	}
	return out
}

// Metrics computes the KPI summary over the whole run so far.
func (m *Model) Metrics() protocol.KPISummary {
	counts := m.proposalCounts()
	resolved := counts.Completed + counts.Failed + counts.Expired
	successActual := 0.0
	if resolved > 0 {
		successActual = float64(counts.Completed) / float64(resolved)
	}

	totalCredits := 0.0
	active := 0
	for _, h := range m.holders {
		if h.Active {
			totalCredits += h.Credits
			active++
		}
	}

	weeks := m.week
	if weeks < 1 {
		weeks = 1
	}

	return protocol.KPISummary{
		Week:              m.week,
		Year:              float64(m.week) / emission.WeeksPerYear,
		ParticipationRate: m.participationRate(),
		CurrentAPY:        m.currentAPY(),
		TotalRSCHeld:      m.totalRSCHeld(),
		CirculatingSupply: m.circulatingSupply(),
		AnnualEmission:    m.emit.AnnualAt(m.week),
		WeeklyEmission:    m.emit.WeeklyAt(m.week),

		TotalCredits:          totalCredits,
		TotalBurned:           m.totalBurned,
		TotalCreditsEarned:    m.totalCreditsEarned,
		TotalCreditsDeployed:  m.totalCreditsDeployed,
		DeploymentRatePerWeek: m.totalCreditsDeployed / float64(weeks),

		TierDistribution: m.TierDistribution(),

		Proposals:         counts,
		SuccessRateActual: successActual,

		NumHolders:    len(m.holders),
		ActiveHolders: active,
		ExitedHolders: len(m.holders) - active,
		NumProposals:  len(m.proposals),
	}
}

// TierDistribution breaks the active population down by time-weight tier.
func (m *Model) TierDistribution() map[string]protocol.TierStat {
	dist := make(map[string]protocol.TierStat, len(m.tune.TimeWeights))
	for _, tier := range m.tune.TimeWeights {
		dist[tier.Label] = protocol.TierStat{Multiplier: tier.Multiplier}
	}
	for _, h := range m.holders {
		if !h.Active {
			continue
		}
		tier := m.tune.TierFor(h.WeeksHeld)
		stat := dist[tier.Label]
		stat.Count++
		stat.RSC += h.RSCHeld
		dist[tier.Label] = stat
	}
	return dist
}

// ArchetypeMetrics aggregates per-archetype population figures.
func (m *Model) ArchetypeMetrics() map[string]protocol.ArchetypeMetrics {
	out := make(map[string]protocol.ArchetypeMetrics, len(m.cats.Order))
	for _, id := range m.cats.Order {
		var am protocol.ArchetypeMetrics
		var rsc, weeks, mult, credits float64
		for _, h := range m.holders {
			if h.Archetype != id {
				continue
			}
			am.Total++
			am.TotalDeployed += h.TotalDeployed
			am.TotalBurned += h.TotalBurned
			if !h.Active {
				continue
			}
			am.Active++
			rsc += h.RSCHeld
			weeks += float64(h.WeeksHeld)
			mult += m.tune.TierFor(h.WeeksHeld).Multiplier
			credits += h.Credits
		}
		if am.Total == 0 {
			continue
		}
		am.Exited = am.Total - am.Active
		if am.Active > 0 {
			n := float64(am.Active)
			am.AvgRSC = rsc / n
			am.AvgWeeksHeld = weeks / n
			am.AvgMultiplier = mult / n
			am.AvgCredits = credits / n
		}
		out[id] = am
	}
	return out
}

// ParticipationData is the headline readout plus APY at fixed reference
// participation rates.
func (m *Model) ParticipationData() protocol.ParticipationData {
	circ := m.circulatingSupply()
	annual := m.emit.AnnualAt(m.week)
	scenarios := make(map[string]float64, 3)
	for name, rate := range map[string]float64{"15pct": 0.15, "30pct": 0.30, "70pct": 0.70} {
		if circ > 0 {
			scenarios[name] = annual / (circ * rate)
		}
	}
	return protocol.ParticipationData{
		ParticipationRate: m.participationRate(),
		CurrentAPY:        m.currentAPY(),
		TotalRSCHeld:      m.totalRSCHeld(),
		CirculatingSupply: circ,
		AnnualEmission:    annual,
		Year:              float64(m.week) / emission.WeeksPerYear,
		Scenarios:         scenarios,
	}
}
