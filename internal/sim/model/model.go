// Package model implements the endowment participation model: a
// discrete-time agent simulation of token holders earning yield credits
// under a decaying emission schedule and deciding each week whether to
// deploy them to funding proposals or exit the system.
//
// The model is single-threaded; all mutation happens inside New, Step
// and Run. Accessors return copies or immutable views. All randomness
// comes from one seeded source consumed in a fixed order, so a fixed
// seed reproduces a run exactly.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"endowsim/internal/protocol"
	"endowsim/internal/sim/archetypes"
	"endowsim/internal/sim/behavior"
	"endowsim/internal/sim/emission"
	"endowsim/internal/sim/tuning"
)

// StepLogger receives one entry per advanced week. Implementations live
// outside the engine (internal/persistence/log); a nil logger is fine.
type StepLogger interface {
	WriteStep(entry StepLogEntry) error
}

type StepLogEntry struct {
	Week     int               `json:"week"`
	Digest   string            `json:"digest"`
	Snapshot protocol.Snapshot `json:"snapshot"`
	Events   []protocol.Event  `json:"events,omitempty"`
}

type Model struct {
	cfg  Config
	tune tuning.Tuning
	cats *archetypes.Catalog
	emit emission.Engine
	rng  *rand.Rand

	week int

	holders      []*Holder // creation order; ids are Hn in this order
	nextHolderID int

	proposals      []*Proposal
	nextProposalID int

	cumulativeEmissions  float64
	totalBurned          float64
	totalCreditsEarned   float64
	totalCreditsDeployed float64

	history []protocol.Snapshot
	events  []protocol.Event

	stepLogger StepLogger

	// Per-step flow counters, reset at the top of each step.
	stepEarned   float64
	stepDeployed float64
	stepBurned   float64
	stepExits    int
	stepEntries  int
}

// New validates the configuration, samples the initial population and
// proposal pool, and records the week-0 snapshot.
func New(cfg Config, tune tuning.Tuning, cats *archetypes.Catalog) (*Model, error) {
	if err := tune.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cats.ValidateMix(cfg.ArchetypeMix, MixTolerance); err != nil {
		return nil, &ConfigError{Field: "archetype_mix", Reason: err.Error()}
	}
	if _, ok := cats.ByID[tune.Entry.Archetype]; !ok {
		return nil, fmt.Errorf("tuning: entry.archetype %q not in archetype catalog", tune.Entry.Archetype)
	}

	emit, err := emission.New(cfg.Emission)
	if err != nil {
		return nil, &ConfigError{Field: "emission", Reason: err.Error()}
	}

	m := &Model{
		cfg:  cfg,
		tune: tune,
		cats: cats,
		emit: emit,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}

	m.spawnInitialHolders()
	m.rescaleToParticipation()
	for i := 0; i < cfg.NumProposals; i++ {
		m.addProposal()
	}

	m.logEventf(protocol.EventInit, "model initialized: %d holders, %d proposals, APY %.2f%%",
		len(m.holders), len(m.proposals), m.currentAPY()*100)
	m.appendSnapshot()
	return m, nil
}

func (m *Model) SetStepLogger(l StepLogger) { m.stepLogger = l }

// spawnInitialHolders apportions the population across the archetype mix
// and samples each holder. Iteration follows the catalog's stable id
// order so a fixed seed yields an identical population.
func (m *Model) spawnInitialHolders() {
	counts := archetypes.SplitCounts(m.cfg.ArchetypeMix, m.cfg.NumHolders)
	for _, id := range m.cats.Order {
		n := counts[id]
		def := m.cats.ByID[id]
		for i := 0; i < n; i++ {
			m.newHolderFrom(def)
		}
	}
}

func (m *Model) newHolderFrom(def archetypes.Def) *Holder {
	m.nextHolderID++
	p := def.Sample(m.rng, m.cfg.YieldThresholdMean, m.tune.Behavior.MinYieldThreshold)
	h := newHolder(m.nextHolderID, m.week, p, m.tune.RSCUnit)
	m.holders = append(m.holders, h)
	return h
}

// rescaleToParticipation scales the sampled holdings so the run starts
// at the requested fraction of circulating supply.
func (m *Model) rescaleToParticipation() {
	rate := m.cfg.InitialParticipationRate
	if rate <= 0 {
		return
	}
	total := m.totalRSCHeld()
	if total <= 0 {
		return
	}
	factor := m.cfg.Emission.CirculatingSupply0 * rate / total
	for _, h := range m.holders {
		h.RSCHeld = roundUnit(h.RSCHeld*factor, m.tune.RSCUnit)
		h.InitialRSC = h.RSCHeld
	}
}

func (m *Model) addProposal() *Proposal {
	m.nextProposalID++
	span := m.cfg.FundingTargetMax - m.cfg.FundingTargetMin
	target := roundUnit(m.cfg.FundingTargetMin+m.rng.Float64()*span, m.tune.RSCUnit)
	p := &Proposal{
		ID:            m.nextProposalID,
		FundingTarget: target,
		Backers:       make(map[int]float64),
		Status:        StatusOpen,
		CreatedWeek:   m.week,
	}
	m.proposals = append(m.proposals, p)
	m.logEventf(protocol.EventNewProposal, "P%d created (target: %.0f credits)", p.ID, p.FundingTarget)
	return p
}

// ---- derived quantities ----

func (m *Model) totalRSCHeld() float64 {
	total := 0.0
	for _, h := range m.holders {
		if h.Active {
			total += h.RSCHeld
		}
	}
	return total
}

func (m *Model) totalEffectiveRSC() float64 {
	total := 0.0
	for _, h := range m.holders {
		if h.Active {
			total += h.RSCHeld * m.tune.TierFor(h.WeeksHeld).Multiplier
		}
	}
	return total
}

func (m *Model) circulatingSupply() float64 {
	return m.cfg.Emission.CirculatingSupply0 + m.cumulativeEmissions
}

func (m *Model) participationRate() float64 {
	circ := m.circulatingSupply()
	if circ <= 0 {
		return 0
	}
	return m.totalRSCHeld() / circ
}

// currentAPY is the implied annualized yield at the base 1.0x
// multiplier: weekly emission * 52 / total held. Defined as 0 with no
// held RSC rather than faulting.
func (m *Model) currentAPY() float64 {
	total := m.totalRSCHeld()
	if total <= 0 {
		return 0
	}
	return m.emit.WeeklyAt(m.week) * emission.WeeksPerYear / total
}

func (m *Model) logEventf(eventType, format string, args ...any) {
	m.events = append(m.events, protocol.Event{
		Week:    m.week,
		Type:    eventType,
		Message: fmt.Sprintf(format, args...),
	})
}

func roundUnit(x, unit float64) float64 {
	if unit <= 0 {
		return x
	}
	return math.Round(x/unit) * unit
}

func clamp(x, lo, hi float64) float64 { return behavior.Clamp(x, lo, hi) }
