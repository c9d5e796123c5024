package state

import "sort"

// Allocation is one fund's recorded weighting toward one registered asset.
// CurrentWeightBps is informational; TargetWeightBps drives rebalancing.
type Allocation struct {
	FundID           int64
	AssetID          int64
	TokenRef         string
	TargetWeightBps  int64
	CurrentWeightBps int64
	Balance          int64 // asset units held
	LastPrice        int64 // base units per asset unit
}

type AllocationKey struct {
	FundID  int64
	AssetID int64
}

// AllocationTable holds per-(fund, asset) allocation records. Records are
// created by add-fund-asset and never deleted.
type AllocationTable struct {
	allocations map[AllocationKey]*Allocation
}

func NewAllocationTable() *AllocationTable {
	return &AllocationTable{
		allocations: make(map[AllocationKey]*Allocation),
	}
}

// Get returns the live record or nil.
func (at *AllocationTable) Get(fundID, assetID int64) *Allocation {
	return at.allocations[AllocationKey{FundID: fundID, AssetID: assetID}]
}

// Put stores a new allocation record, overwriting any existing one for
// the same (fund, asset) pair.
func (at *AllocationTable) Put(a Allocation) *Allocation {
	stored := a
	at.allocations[AllocationKey{FundID: stored.FundID, AssetID: stored.AssetID}] = &stored
	return &stored
}

// ByFund returns a fund's allocations ordered by asset id.
func (at *AllocationTable) ByFund(fundID int64) []*Allocation {
	result := make([]*Allocation, 0)
	for key, a := range at.allocations {
		if key.FundID == fundID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssetID < result[j].AssetID })
	return result
}

// TargetWeightSum returns the sum of target weights across one fund's
// allocations. Not enforced as an invariant; surfaced for operators.
func (at *AllocationTable) TargetWeightSum(fundID int64) int64 {
	var sum int64
	for key, a := range at.allocations {
		if key.FundID == fundID {
			sum += a.TargetWeightBps
		}
	}
	return sum
}

// All returns every allocation, ordered by (fund, asset) for
// deterministic snapshots.
func (at *AllocationTable) All() []*Allocation {
	result := make([]*Allocation, 0, len(at.allocations))
	for _, a := range at.allocations {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FundID != result[j].FundID {
			return result[i].FundID < result[j].FundID
		}
		return result[i].AssetID < result[j].AssetID
	})
	return result
}

// Restore directly sets a record (snapshot restore path).
func (at *AllocationTable) Restore(a Allocation) {
	at.Put(a)
}
