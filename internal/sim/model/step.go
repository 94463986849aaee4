package model

import (
	"sort"

	"endowsim/internal/protocol"
	"endowsim/internal/sim/behavior"
)

// Step advances the model by one week. Phase order is fixed and
// load-bearing: earn credits -> deploy -> resolve funded proposals ->
// exits -> entrant spawn -> proposal replenish -> snapshot. Reordering
// changes outcomes (resolution sees same-week deploys, exits read the
// post-burn APY, entrants first earn the following week).
//
// It returns the events recorded during the step and the appended
// snapshot. The step commits fully before returning; there is no
// partial-step visibility.
func (m *Model) Step() ([]protocol.Event, protocol.Snapshot) {
	m.week++
	m.stepEarned = 0
	m.stepDeployed = 0
	m.stepBurned = 0
	m.stepExits = 0
	m.stepEntries = 0
	eventsFrom := len(m.events)

	m.earnPhase()
	m.deployPhase()
	m.resolvePhase()
	m.exitPhase()
	m.spawnPhase()
	m.replenishPhase()

	snap := m.appendSnapshot()
	stepEvents := append([]protocol.Event(nil), m.events[eventsFrom:]...)

	if m.stepLogger != nil {
		_ = m.stepLogger.WriteStep(StepLogEntry{
			Week:     m.week,
			Digest:   m.StateDigest(),
			Snapshot: snap,
			Events:   stepEvents,
		})
	}
	return stepEvents, snap
}

// Run advances n sequential steps and returns their snapshots plus the
// final state. Run(0) is a no-op. Because the steps consume the single
// random stream sequentially, Run(a) followed by Run(b) is identical to
// Run(a+b).
func (m *Model) Run(n int) ([]protocol.Snapshot, protocol.Snapshot) {
	appended := make([]protocol.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		_, snap := m.Step()
		appended = append(appended, snap)
	}
	return appended, m.State()
}

// earnPhase distributes the week's emission budget as credits, pro rata
// by time-weighted effective share. With zero total effective RSC no
// credits are earned this week; the emission still enters circulating
// supply.
func (m *Model) earnPhase() {
	for _, h := range m.holders {
		if h.Active {
			h.WeeksHeld++
		}
	}

	weekly := m.emit.WeeklyAt(m.week)
	m.cumulativeEmissions += weekly

	totalEffective := m.totalEffectiveRSC()
	if totalEffective <= 0 {
		return
	}
	for _, h := range m.holders {
		if !h.Active {
			continue
		}
		effective := h.RSCHeld * m.tune.TierFor(h.WeeksHeld).Multiplier
		earned := weekly * effective / totalEffective
		h.Credits += earned
		h.WeeklyEarned = earned
		m.stepEarned += earned
	}
	m.totalCreditsEarned += m.stepEarned
}

// deployPhase lets each active holder with credits decide, with one
// uniform draw, whether to deploy its entire balance to one proposal.
// With an empty open pool the phase is skipped and no draws are made.
func (m *Model) deployPhase() {
	if m.selectProposal() == nil {
		return
	}
	for _, h := range m.holders {
		if !h.Active || h.Credits <= 0 {
			continue
		}
		p := behavior.DeployProbability(h.Engagement, h.Credits, h.WeeklyEarned,
			m.cfg.DeployProbability, m.tune.Behavior)
		if m.rng.Float64() >= p {
			continue
		}
		target := m.selectProposal()
		if target == nil {
			// Pool filled up mid-phase; the decision stands but there is
			// nothing left to fund.
			continue
		}
		m.applyDeploy(h, target)
	}
}

// selectProposal picks the open proposal with the largest remaining
// funding gap, ties broken by lowest id. Deterministic: no randomness
// is consumed by selection.
func (m *Model) selectProposal() *Proposal {
	var best *Proposal
	for _, p := range m.proposals {
		if p.Status != StatusOpen || p.remainingGap() <= 0 {
			continue
		}
		if best == nil || p.remainingGap() > best.remainingGap() {
			best = p
		}
	}
	return best
}

// applyDeploy moves the holder's entire credit balance into the target
// proposal (clamped at the funding target; the unapplied excess stays
// with the holder) and burns burn_rate of the RSC backing it, capped at
// max_burn_fraction of the holder's RSC.
func (m *Model) applyDeploy(h *Holder, target *Proposal) {
	amount := h.Credits
	applied, excess, fundedNow := target.receive(h.ID, amount)
	h.Credits = excess
	h.TotalDeployed += applied
	m.stepDeployed += applied
	m.totalCreditsDeployed += applied

	burn := roundUnit(h.RSCHeld*m.cfg.BurnRate, m.tune.RSCUnit)
	if burnCap := roundUnit(h.RSCHeld*m.tune.Behavior.MaxBurnFraction, m.tune.RSCUnit); burn > burnCap {
		burn = burnCap
	}
	if burn > h.RSCHeld {
		burn = h.RSCHeld
	}
	h.RSCHeld = roundUnit(h.RSCHeld-burn, m.tune.RSCUnit)
	h.TotalBurned += burn
	m.stepBurned += burn
	m.totalBurned += burn

	h.Deployments = append(h.Deployments, Deployment{
		Week:       m.week,
		ProposalID: target.ID,
		Credits:    applied,
		Excess:     excess,
		Burned:     burn,
	})

	if fundedNow {
		target.FundedWeek = m.week
		m.logEventf(protocol.EventFunded, "P%d reached funding target (%.0f/%.0f)",
			target.ID, target.CreditsReceived, target.FundingTarget)
	}
}

// resolvePhase resolves every proposal funded this week (funding and
// resolution land in the same step, after all deploys), applies the
// failure-mode consequence, expires stale open proposals, and blends
// backer satisfaction toward the observed outcomes.
func (m *Model) resolvePhase() {
	resolved := make(map[int]bool)

	for _, p := range m.proposals {
		if p.Status != StatusFunded {
			continue
		}
		success := m.rng.Float64() < m.cfg.SuccessRate
		p.ResolvedWeek = m.week
		if success {
			p.Status = StatusCompleted
			m.logEventf(protocol.EventCompleted, "P%d completed successfully", p.ID)
		} else {
			p.Status = StatusFailed
			m.logEventf(protocol.EventFailed, "P%d failed", p.ID)
			if m.cfg.FailureMode == FailurePartialRefund {
				m.refundBackers(p)
			}
		}
		resolved[p.ID] = success
	}

	if m.cfg.CreditExpiryEnabled {
		for _, p := range m.proposals {
			if p.Status != StatusOpen || m.week-p.CreatedWeek < m.cfg.CreditExpiryWeeks {
				continue
			}
			p.Status = StatusExpired
			p.ResolvedWeek = m.week
			m.logEventf(protocol.EventExpired, "P%d expired unfunded (%.0f/%.0f)",
				p.ID, p.CreditsReceived, p.FundingTarget)
			resolved[p.ID] = false
		}
	}

	if len(resolved) > 0 {
		m.blendSatisfaction(resolved)
	}
}

// refundBackers returns a configured fraction of each backer's
// contribution as fresh credits, pro rata by contribution.
func (m *Model) refundBackers(p *Proposal) {
	ids := make([]int, 0, len(p.Backers))
	for id := range p.Backers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		h := m.holderByNum(id)
		if h == nil || !h.Active {
			continue
		}
		h.Credits += p.Backers[id] * m.cfg.PartialRefundFraction
	}
}

// blendSatisfaction nudges each backer's satisfaction toward the
// outcome of every proposal resolved this step. Satisfaction only feeds
// reporting; the exit decision is yield-driven.
func (m *Model) blendSatisfaction(resolved map[int]bool) {
	blend := m.tune.Behavior.SatisfactionBlend
	floor := m.tune.Behavior.SatisfactionFloor
	for _, p := range m.proposals {
		success, ok := resolved[p.ID]
		if !ok {
			continue
		}
		outcome := 0.0
		if success {
			outcome = 1.0
		}
		for _, h := range m.holders {
			if !h.Active {
				continue
			}
			if _, backed := p.Backers[h.ID]; !backed {
				continue
			}
			h.Satisfaction = clamp(h.Satisfaction*(1-blend)+outcome*blend, floor, 1)
		}
	}
}

// exitPhase draws one uniform value per active holder against its exit
// probability at the post-burn APY. Exited holders keep their record but
// leave total held RSC and all future computations.
func (m *Model) exitPhase() {
	apy := m.currentAPY()
	for _, h := range m.holders {
		if !h.Active {
			continue
		}
		p := behavior.ExitProbability(apy, h.YieldThreshold, h.PriceSensitivity,
			h.HoldHorizon, m.tune.Behavior)
		if m.rng.Float64() >= p {
			continue
		}
		h.Active = false
		h.ExitedWeek = m.week
		m.stepExits++
		m.logEventf(protocol.EventExit, "H%d (%s) exited with %.0f RSC (APY %.2f%% < threshold %.2f%%)",
			h.ID, h.Archetype, h.RSCHeld, apy*100, h.YieldThreshold*100)
	}
}

// spawnPhase closes the feedback loop: when the post-exit APY clears the
// entry threshold, new entrants of the configured archetype join with
// freshly sampled parameters, raising total held RSC and depressing the
// next week's APY.
func (m *Model) spawnPhase() {
	apy := m.currentAPY()
	p := behavior.EntrantSpawnProbability(apy, m.cfg.YieldThresholdMean, m.tune.Entry)
	if p <= 0 || m.rng.Float64() >= p {
		return
	}
	n := m.tune.Entry.MinEntrants
	if span := m.tune.Entry.MaxEntrants - m.tune.Entry.MinEntrants; span > 0 {
		n += m.rng.Intn(span + 1)
	}
	def := m.cats.ByID[m.tune.Entry.Archetype]
	for i := 0; i < n; i++ {
		m.newHolderFrom(def)
	}
	m.stepEntries += n
	m.logEventf(protocol.EventEntry, "%d new %s entrant(s) joined (APY %.2f%% above entry threshold)",
		n, m.tune.Entry.Archetype, apy*100)
}

// replenishPhase keeps the open pool from draining: below the floor, a
// new proposal appears with the configured probability.
func (m *Model) replenishPhase() {
	open := 0
	for _, p := range m.proposals {
		if p.Status == StatusOpen {
			open++
		}
	}
	if open >= m.tune.Proposals.ReplenishFloor {
		return
	}
	if m.rng.Float64() < m.tune.Proposals.ReplenishProb {
		m.addProposal()
	}
}

func (m *Model) holderByNum(id int) *Holder {
	// Holder ids are assigned 1..n in slice order.
	if id < 1 || id > len(m.holders) {
		return nil
	}
	return m.holders[id-1]
}
