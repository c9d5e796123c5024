package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"FundLedger/internal/engine"
	"FundLedger/internal/persistence"
	"FundLedger/internal/registry"
	"FundLedger/internal/state"
)

// toSnapshotData converts live engine state into the storage form.
// Identities are serialized as UUID strings so snapshots stay readable
// as plain JSON in Postgres.
func toSnapshotData(s *engine.SnapshotState) *persistence.SnapshotData {
	data := &persistence.SnapshotData{
		Sequence:  s.Sequence,
		Height:    s.Height,
		Vaults:    s.Vaults,
		CreatedAt: time.Now().UTC(),
		Config: persistence.ConfigSnapshot{
			Owner:                 s.Config.Owner.String(),
			ProtocolFeeBps:        s.Config.ProtocolFeeBps,
			RebalanceThresholdBps: s.Config.RebalanceThresholdBps,
			RebalanceInterval:     s.Config.RebalanceInterval,
		},
	}

	for _, f := range s.Funds {
		data.Funds = append(data.Funds, persistence.FundSnapshot{
			ID:               f.ID,
			Name:             f.Name,
			Symbol:           f.Symbol,
			Manager:          f.Manager.String(),
			TotalShares:      f.TotalShares,
			TotalValue:       f.TotalValue,
			Active:           f.Active,
			CreatedAt:        f.CreatedAt,
			LastRebalance:    f.LastRebalance,
			ManagementFeeBps: f.ManagementFeeBps,
			Version:          f.Version,
		})
	}
	for _, a := range s.Allocations {
		data.Allocations = append(data.Allocations, persistence.AllocationSnapshot{
			FundID:           a.FundID,
			AssetID:          a.AssetID,
			TokenRef:         a.TokenRef,
			TargetWeightBps:  a.TargetWeightBps,
			CurrentWeightBps: a.CurrentWeightBps,
			Balance:          a.Balance,
			LastPrice:        a.LastPrice,
		})
	}
	for _, p := range s.Positions {
		data.Positions = append(data.Positions, persistence.PositionSnapshot{
			FundID:         p.FundID,
			Holder:         p.Holder.String(),
			Shares:         p.Shares,
			LastDeposit:    p.LastDeposit,
			TotalDeposited: p.TotalDeposited,
		})
	}
	for _, a := range s.Assets {
		data.Assets = append(data.Assets, persistence.AssetSnapshot{
			ID:        a.ID,
			TokenRef:  a.TokenRef,
			Symbol:    a.Symbol,
			Decimals:  a.Decimals,
			Active:    a.Active,
			OracleRef: a.OracleRef,
		})
	}
	return data
}

// fromSnapshotData converts a stored snapshot back into engine state.
func fromSnapshotData(data *persistence.SnapshotData) (*engine.SnapshotState, error) {
	owner, err := uuid.Parse(data.Config.Owner)
	if err != nil {
		return nil, fmt.Errorf("snapshot config owner: %w", err)
	}

	s := &engine.SnapshotState{
		Sequence: data.Sequence,
		Height:   data.Height,
		Vaults:   data.Vaults,
		Config: state.ProtocolConfig{
			Owner:                 owner,
			ProtocolFeeBps:        data.Config.ProtocolFeeBps,
			RebalanceThresholdBps: data.Config.RebalanceThresholdBps,
			RebalanceInterval:     data.Config.RebalanceInterval,
		},
	}

	for _, f := range data.Funds {
		manager, err := uuid.Parse(f.Manager)
		if err != nil {
			return nil, fmt.Errorf("snapshot fund %d manager: %w", f.ID, err)
		}
		s.Funds = append(s.Funds, state.Fund{
			ID:               f.ID,
			Name:             f.Name,
			Symbol:           f.Symbol,
			Manager:          manager,
			TotalShares:      f.TotalShares,
			TotalValue:       f.TotalValue,
			Active:           f.Active,
			CreatedAt:        f.CreatedAt,
			LastRebalance:    f.LastRebalance,
			ManagementFeeBps: f.ManagementFeeBps,
			Version:          f.Version,
		})
	}
	for _, a := range data.Allocations {
		s.Allocations = append(s.Allocations, state.Allocation{
			FundID:           a.FundID,
			AssetID:          a.AssetID,
			TokenRef:         a.TokenRef,
			TargetWeightBps:  a.TargetWeightBps,
			CurrentWeightBps: a.CurrentWeightBps,
			Balance:          a.Balance,
			LastPrice:        a.LastPrice,
		})
	}
	for _, p := range data.Positions {
		holder, err := uuid.Parse(p.Holder)
		if err != nil {
			return nil, fmt.Errorf("snapshot position fund %d holder: %w", p.FundID, err)
		}
		s.Positions = append(s.Positions, state.Position{
			FundID:         p.FundID,
			Holder:         holder,
			Shares:         p.Shares,
			LastDeposit:    p.LastDeposit,
			TotalDeposited: p.TotalDeposited,
		})
	}
	for _, a := range data.Assets {
		s.Assets = append(s.Assets, registry.Asset{
			ID:        a.ID,
			TokenRef:  a.TokenRef,
			Symbol:    a.Symbol,
			Decimals:  a.Decimals,
			Active:    a.Active,
			OracleRef: a.OracleRef,
		})
	}
	return s, nil
}
