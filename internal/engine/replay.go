package engine

import (
	"encoding/json"
	"fmt"

	"FundLedger/internal/event"
	"FundLedger/internal/registry"
	"FundLedger/internal/state"
)

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence    int64
	Height      int64
	Funds       []state.Fund
	Allocations []state.Allocation
	Positions   []state.Position
	Assets      []registry.Asset
	Config      state.ProtocolConfig
	Vaults      map[int64]int64
}

// snapshotCustodian is the optional capture/restore surface a
// custodian can expose; VaultCustodian implements it.
type snapshotCustodian interface {
	Snapshot() map[int64]int64
	Restore(map[int64]int64)
}

// CreateSnapshotState captures the current in-memory state. Callers
// persist it and later hand it back to RestoreFromSnapshot.
func (l *Ledger) CreateSnapshotState() *SnapshotState {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &SnapshotState{
		Sequence: l.sequence,
		Height:   l.clock.Height(),
		Config:   *l.config,
	}
	for _, f := range l.funds.All() {
		snap.Funds = append(snap.Funds, *f)
	}
	for _, a := range l.allocations.All() {
		snap.Allocations = append(snap.Allocations, *a)
	}
	for _, p := range l.positions.All() {
		snap.Positions = append(snap.Positions, *p)
	}
	snap.Assets = l.assets.All()
	if sc, ok := l.custodian.(snapshotCustodian); ok {
		snap.Vaults = sc.Snapshot()
	}
	return snap
}

// RestoreFromSnapshot reinstates state captured by CreateSnapshotState.
// Must run before the engine starts accepting operations.
func (l *Ledger) RestoreFromSnapshot(snap *SnapshotState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence = snap.Sequence
	*l.config = snap.Config
	for _, f := range snap.Funds {
		l.funds.Restore(f)
	}
	for _, a := range snap.Allocations {
		l.allocations.Restore(a)
	}
	for _, p := range snap.Positions {
		l.positions.Restore(p)
	}
	for _, a := range snap.Assets {
		l.assets.Restore(a)
	}
	if sc, ok := l.custodian.(snapshotCustodian); ok && snap.Vaults != nil {
		sc.Restore(snap.Vaults)
	}
}

// ReplayEvent re-applies one committed event from the log during
// recovery. Payloads carry the resulting state of each operation, so
// replay patches records directly with no validation, no custody
// movement, and no re-emission.
func (l *Ledger) ReplayEvent(sequence int64, kind event.Kind, height int64, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch kind {
	case event.KindFundCreated:
		var p event.FundCreated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		l.funds.Restore(state.Fund{
			ID:               p.FundID,
			Name:             p.Name,
			Symbol:           p.Symbol,
			Manager:          p.Manager,
			Active:           true,
			CreatedAt:        height,
			LastRebalance:    height,
			ManagementFeeBps: p.ManagementFeeBps,
			Version:          1,
		})

	case event.KindAssetRegistered:
		var p event.AssetRegistered
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		l.assets.Register(registry.Asset{
			ID:        p.AssetID,
			TokenRef:  p.TokenRef,
			Symbol:    p.Symbol,
			Decimals:  p.Decimals,
			OracleRef: p.OracleRef,
		})

	case event.KindFundAssetAdded:
		var p event.FundAssetAdded
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		l.allocations.Restore(state.Allocation{
			FundID:          p.FundID,
			AssetID:         p.AssetID,
			TokenRef:        p.TokenRef,
			TargetWeightBps: p.TargetWeightBps,
		})

	case event.KindSharesMinted:
		var p event.SharesMinted
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		f := l.funds.Get(p.FundID)
		if f == nil {
			return fmt.Errorf("replay seq %d: fund %d missing", sequence, p.FundID)
		}
		f.TotalShares = p.TotalShares
		f.TotalValue = p.TotalValue
		f.Version++
		pos := l.positions.GetOrCreate(p.FundID, p.Holder)
		pos.Shares = p.HolderShares
		pos.LastDeposit = height
		pos.TotalDeposited = p.TotalDeposited

	case event.KindSharesBurned:
		var p event.SharesBurned
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		f := l.funds.Get(p.FundID)
		if f == nil {
			return fmt.Errorf("replay seq %d: fund %d missing", sequence, p.FundID)
		}
		f.TotalShares = p.TotalShares
		f.TotalValue = p.TotalValue
		f.Version++
		pos := l.positions.GetOrCreate(p.FundID, p.Holder)
		pos.Shares = p.HolderShares

	case event.KindPriceUpdated:
		var p event.PriceUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		alloc := l.allocations.Get(p.FundID, p.AssetID)
		if alloc == nil {
			return fmt.Errorf("replay seq %d: allocation %d/%d missing", sequence, p.FundID, p.AssetID)
		}
		alloc.LastPrice = p.Price
		l.reweighLocked(p.FundID, p.AssetID)

	case event.KindFundRebalanced:
		var p event.FundRebalanced
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		f := l.funds.Get(p.FundID)
		if f == nil {
			return fmt.Errorf("replay seq %d: fund %d missing", sequence, p.FundID)
		}
		f.LastRebalance = p.LastRebalance
		f.Version++

	case event.KindFundPaused:
		var p event.FundPaused
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		f := l.funds.Get(p.FundID)
		if f == nil {
			return fmt.Errorf("replay seq %d: fund %d missing", sequence, p.FundID)
		}
		f.Active = false
		f.Version++

	case event.KindFundReactivated:
		var p event.FundReactivated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		f := l.funds.Get(p.FundID)
		if f == nil {
			return fmt.Errorf("replay seq %d: fund %d missing", sequence, p.FundID)
		}
		f.Active = true
		f.Version++

	case event.KindProtocolFeeUpdated:
		var p event.ProtocolFeeUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		l.config.ProtocolFeeBps = p.ProtocolFeeBps

	case event.KindRebalanceThresholdUpdated:
		var p event.RebalanceThresholdUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("replay seq %d: %w", sequence, err)
		}
		l.config.RebalanceThresholdBps = p.RebalanceThresholdBps

	case event.KindRebalanceSignal:
		// Advisory only, nothing to reinstate.

	default:
		return fmt.Errorf("replay seq %d: unknown event kind %d", sequence, kind)
	}

	l.sequence = sequence
	if l.metrics != nil {
		l.metrics.ReplayEventsTotal.Inc()
	}
	return nil
}

// RebuildVaults resets custody balances to each fund's recorded total
// value. Used after log replay, where custody movements were skipped.
func (l *Ledger) RebuildVaults() {
	l.mu.Lock()
	defer l.mu.Unlock()

	sc, ok := l.custodian.(snapshotCustodian)
	if !ok {
		return
	}
	vaults := make(map[int64]int64)
	for _, f := range l.funds.All() {
		vaults[f.ID] = f.TotalValue
	}
	sc.Restore(vaults)
}
