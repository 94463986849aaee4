package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

// StateDigest is a canonical sha256 over the complete mutable state.
// Two models with equal digests are behaviorally interchangeable: all
// future steps from this point produce identical results.
func (m *Model) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteI64(h, &tmp, int64(m.week))
	digestWriteI64(h, &tmp, m.cfg.Seed)
	digestWriteF64(h, &tmp, m.cumulativeEmissions)
	digestWriteF64(h, &tmp, m.totalBurned)
	digestWriteF64(h, &tmp, m.totalCreditsEarned)
	digestWriteF64(h, &tmp, m.totalCreditsDeployed)

	digestWriteU64(h, &tmp, uint64(len(m.holders)))
	for _, hd := range m.holders {
		digestWriteI64(h, &tmp, int64(hd.ID))
		h.Write([]byte(hd.Archetype))
		h.Write([]byte{boolByte(hd.Active)})
		digestWriteF64(h, &tmp, hd.MissionAlignment)
		digestWriteF64(h, &tmp, hd.Engagement)
		digestWriteF64(h, &tmp, hd.PriceSensitivity)
		digestWriteF64(h, &tmp, hd.HoldHorizon)
		digestWriteF64(h, &tmp, hd.YieldThreshold)
		digestWriteF64(h, &tmp, hd.RSCHeld)
		digestWriteF64(h, &tmp, hd.InitialRSC)
		digestWriteI64(h, &tmp, int64(hd.WeeksHeld))
		digestWriteF64(h, &tmp, hd.Credits)
		digestWriteF64(h, &tmp, hd.WeeklyEarned)
		digestWriteF64(h, &tmp, hd.Satisfaction)
		digestWriteF64(h, &tmp, hd.TotalDeployed)
		digestWriteF64(h, &tmp, hd.TotalBurned)
		digestWriteU64(h, &tmp, uint64(len(hd.Deployments)))
		digestWriteI64(h, &tmp, int64(hd.EnteredWeek))
		digestWriteI64(h, &tmp, int64(hd.ExitedWeek))
	}

	digestWriteU64(h, &tmp, uint64(len(m.proposals)))
	for _, p := range m.proposals {
		digestWriteI64(h, &tmp, int64(p.ID))
		h.Write([]byte(p.Status))
		digestWriteF64(h, &tmp, p.FundingTarget)
		digestWriteF64(h, &tmp, p.CreditsReceived)
		digestWriteI64(h, &tmp, int64(p.CreatedWeek))
		digestWriteI64(h, &tmp, int64(p.FundedWeek))
		digestWriteI64(h, &tmp, int64(p.ResolvedWeek))

		backers := make([]int, 0, len(p.Backers))
		for id := range p.Backers {
			backers = append(backers, id)
		}
		sort.Ints(backers)
		digestWriteU64(h, &tmp, uint64(len(backers)))
		for _, id := range backers {
			digestWriteI64(h, &tmp, int64(id))
			digestWriteF64(h, &tmp, p.Backers[id])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
