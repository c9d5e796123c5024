package state

import (
	"sort"

	"github.com/google/uuid"
)

// Position is one holder's share balance in one fund. TotalDeposited is
// cumulative and never decreases; zero-share positions persist.
type Position struct {
	FundID         int64
	Holder         uuid.UUID
	Shares         int64
	LastDeposit    int64 // height
	TotalDeposited int64
}

type PositionKey struct {
	FundID int64
	Holder uuid.UUID
}

// PositionLedger is the share register: per-(fund, holder) positions,
// created lazily on first deposit.
type PositionLedger struct {
	positions map[PositionKey]*Position
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{
		positions: make(map[PositionKey]*Position),
	}
}

// Get returns a zero-valued record when no position exists. Reads never
// allocate map entries; use GetOrCreate on the mutation path.
func (pl *PositionLedger) Get(fundID int64, holder uuid.UUID) Position {
	if pos := pl.positions[PositionKey{FundID: fundID, Holder: holder}]; pos != nil {
		return *pos
	}
	return Position{FundID: fundID, Holder: holder}
}

// GetOrCreate returns the live record, creating a zero-valued one if absent.
func (pl *PositionLedger) GetOrCreate(fundID int64, holder uuid.UUID) *Position {
	key := PositionKey{FundID: fundID, Holder: holder}
	pos := pl.positions[key]
	if pos == nil {
		pos = &Position{FundID: fundID, Holder: holder}
		pl.positions[key] = pos
	}
	return pos
}

// TotalShares sums shares across all holders of a fund. The conservation
// law requires this to equal the fund's TotalShares after every commit.
func (pl *PositionLedger) TotalShares(fundID int64) int64 {
	var total int64
	for key, pos := range pl.positions {
		if key.FundID == fundID {
			total += pos.Shares
		}
	}
	return total
}

// ByFund returns a fund's positions ordered by holder id.
func (pl *PositionLedger) ByFund(fundID int64) []*Position {
	result := make([]*Position, 0)
	for key, pos := range pl.positions {
		if key.FundID == fundID {
			result = append(result, pos)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Holder.String() < result[j].Holder.String()
	})
	return result
}

// All returns every position, ordered for deterministic snapshots.
func (pl *PositionLedger) All() []*Position {
	result := make([]*Position, 0, len(pl.positions))
	for _, pos := range pl.positions {
		result = append(result, pos)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FundID != result[j].FundID {
			return result[i].FundID < result[j].FundID
		}
		return result[i].Holder.String() < result[j].Holder.String()
	})
	return result
}

// Restore directly sets a record (snapshot restore path).
func (pl *PositionLedger) Restore(pos Position) {
	stored := pos
	pl.positions[PositionKey{FundID: stored.FundID, Holder: stored.Holder}] = &stored
}
