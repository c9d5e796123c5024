package registry

import "sort"

// Asset is one registered asset's metadata. Records are immutable after
// registration; registering the same id again overwrites the record.
type Asset struct {
	ID        int64
	TokenRef  string
	Symbol    string
	Decimals  uint8
	Active    bool
	OracleRef string
}

// Registry is the asset metadata lookup table. The accounting engine
// reads it to validate allocations but never mutates entries itself.
type Registry struct {
	assets map[int64]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[int64]*Asset),
	}
}

// Register stores an asset record, overwriting any existing record with
// the same id. New registrations are active.
func (r *Registry) Register(a Asset) {
	a.Active = true
	r.assets[a.ID] = &a
}

// Get returns a copy of the asset record, or false if unregistered.
func (r *Registry) Get(id int64) (Asset, bool) {
	a := r.assets[id]
	if a == nil {
		return Asset{}, false
	}
	return *a, true
}

// All returns copies of every registered asset ordered by id for
// deterministic snapshots.
func (r *Registry) All() []Asset {
	result := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Restore directly sets a record (snapshot restore path).
func (r *Registry) Restore(a Asset) {
	r.assets[a.ID] = &a
}
