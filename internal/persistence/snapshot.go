package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager creates and loads state snapshots for recovery.
// Snapshots are taken periodically; warm restart loads the latest
// verified snapshot and replays events from its sequence forward.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the full in-memory state at a point in time.
type SnapshotData struct {
	Sequence    int64                `json:"sequence"`
	Height      int64                `json:"height"`
	Funds       []FundSnapshot       `json:"funds"`
	Allocations []AllocationSnapshot `json:"allocations"`
	Positions   []PositionSnapshot   `json:"positions"`
	Assets      []AssetSnapshot      `json:"assets"`
	Config      ConfigSnapshot       `json:"config"`
	Vaults      map[int64]int64      `json:"vaults"`
	CreatedAt   time.Time            `json:"created_at"`
}

// FundSnapshot is a serializable fund record.
type FundSnapshot struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	Manager          string `json:"manager"`
	TotalShares      int64  `json:"total_shares"`
	TotalValue       int64  `json:"total_value"`
	Active           bool   `json:"active"`
	CreatedAt        int64  `json:"created_at"`
	LastRebalance    int64  `json:"last_rebalance"`
	ManagementFeeBps int64  `json:"management_fee_bps"`
	Version          int64  `json:"version"`
}

// AllocationSnapshot is a serializable allocation record.
type AllocationSnapshot struct {
	FundID           int64  `json:"fund_id"`
	AssetID          int64  `json:"asset_id"`
	TokenRef         string `json:"token_ref"`
	TargetWeightBps  int64  `json:"target_weight_bps"`
	CurrentWeightBps int64  `json:"current_weight_bps"`
	Balance          int64  `json:"balance"`
	LastPrice        int64  `json:"last_price"`
}

// PositionSnapshot is a serializable position record.
type PositionSnapshot struct {
	FundID         int64  `json:"fund_id"`
	Holder         string `json:"holder"`
	Shares         int64  `json:"shares"`
	LastDeposit    int64  `json:"last_deposit"`
	TotalDeposited int64  `json:"total_deposited"`
}

// AssetSnapshot is a serializable asset registry entry.
type AssetSnapshot struct {
	ID        int64  `json:"id"`
	TokenRef  string `json:"token_ref"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Active    bool   `json:"active"`
	OracleRef string `json:"oracle_ref,omitempty"`
}

// ConfigSnapshot is the serializable protocol configuration.
type ConfigSnapshot struct {
	Owner                 string `json:"owner"`
	ProtocolFeeBps        int64  `json:"protocol_fee_bps"`
	RebalanceThresholdBps int64  `json:"rebalance_threshold_bps"`
	RebalanceInterval     int64  `json:"rebalance_interval"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to fund_log.snapshots. Snapshots
// start unverified; MarkVerified flips the flag after an integrity
// check so restarts never load a half-written snapshot.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO fund_log.snapshots
			(snapshot_id, sequence, data, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $5
	`, snapshotID, snap.Sequence, data, formatVersion, len(data), snap.CreatedAt)

	return len(data), err
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil
// for a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM fund_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE fund_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events at or above a sequence for replay.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, fund_id, height, caller, payload, timestamp
		FROM fund_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.FundID, &e.Height,
			&e.Caller, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log,
// zero when the log is empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM fund_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
