package state

import (
	"sort"

	"github.com/google/uuid"
)

// Fund is one pooled-capital fund record. TotalShares and TotalValue are
// fixed-point integers in share units and base settlement units.
type Fund struct {
	ID               int64
	Name             string
	Symbol           string
	Manager          uuid.UUID
	TotalShares      int64
	TotalValue       int64
	Active           bool
	CreatedAt        int64 // height
	LastRebalance    int64 // height
	ManagementFeeBps int64
	Version          int64
}

// FundStore owns all Fund records and the monotonic id counter.
// Ids start at 1 and are never reused; funds are never deleted.
type FundStore struct {
	funds  map[int64]*Fund
	nextID int64
}

func NewFundStore() *FundStore {
	return &FundStore{
		funds:  make(map[int64]*Fund),
		nextID: 1,
	}
}

// Create assigns the next fund id and stores the record. The caller fills
// every field except ID.
func (fs *FundStore) Create(f Fund) *Fund {
	f.ID = fs.nextID
	fs.nextID++

	stored := f
	fs.funds[stored.ID] = &stored
	return &stored
}

// Get returns the live record or nil.
func (fs *FundStore) Get(id int64) *Fund {
	return fs.funds[id]
}

// NextID returns the id the next created fund will receive.
func (fs *FundStore) NextID() int64 {
	return fs.nextID
}

// All returns live records ordered by id for deterministic iteration.
func (fs *FundStore) All() []*Fund {
	result := make([]*Fund, 0, len(fs.funds))
	for _, f := range fs.funds {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Restore directly sets a record and advances the id counter past it
// (snapshot restore path).
func (fs *FundStore) Restore(f Fund) {
	stored := f
	fs.funds[stored.ID] = &stored
	if stored.ID >= fs.nextID {
		fs.nextID = stored.ID + 1
	}
}
