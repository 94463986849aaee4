package model

import (
	"fmt"

	"endowsim/internal/protocol"
)

// Proposal statuses. open -> funded -> {completed, failed}; open -> expired.
// completed, failed and expired are terminal.
const (
	StatusOpen      = "open"
	StatusFunded    = "funded"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// Proposal is a funding proposal. Mutated only by the deploy and
// resolution phases; retained after resolution for reporting.
type Proposal struct {
	ID            int
	FundingTarget float64

	CreditsReceived float64
	Backers         map[int]float64 // holder id -> total contribution

	Status       string
	CreatedWeek  int
	FundedWeek   int // 0 until funded
	ResolvedWeek int // 0 until resolved
}

func (p *Proposal) remainingGap() float64 {
	return p.FundingTarget - p.CreditsReceived
}

// receive credits a contribution, clamped so credits_received never
// exceeds the funding target. The unapplied excess is returned to the
// caller. Reports whether this contribution filled the target.
func (p *Proposal) receive(holderID int, amount float64) (applied, excess float64, fundedNow bool) {
	applied = amount
	if gap := p.remainingGap(); applied > gap {
		applied = gap
	}
	if applied < 0 {
		applied = 0
	}
	excess = amount - applied
	if applied == 0 {
		return 0, excess, false
	}
	p.CreditsReceived += applied
	if p.Backers == nil {
		p.Backers = make(map[int]float64)
	}
	p.Backers[holderID] += applied
	if p.Status == StatusOpen && p.remainingGap() <= 0 {
		p.Status = StatusFunded
		return applied, excess, true
	}
	return applied, excess, false
}

func (p *Proposal) fundingProgress() float64 {
	if p.FundingTarget <= 0 {
		return 0
	}
	return p.CreditsReceived / p.FundingTarget * 100
}

func (p *Proposal) view() protocol.ProposalView {
	return protocol.ProposalView{
		ID:              fmt.Sprintf("P%d", p.ID),
		FundingTarget:   p.FundingTarget,
		CreditsReceived: p.CreditsReceived,
		FundingProgress: p.fundingProgress(),
		BackerCount:     len(p.Backers),
		Status:          p.Status,
		WeekCreated:     p.CreatedWeek,
		WeekFunded:      p.FundedWeek,
		WeekResolved:    p.ResolvedWeek,
	}
}
