package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"FundLedger/internal/persistence"
	"FundLedger/internal/testutil"
)

func eventRow(seq int64, eventType string, fundID int64) persistence.EventRow {
	return persistence.EventRow{
		Sequence:  seq,
		EventType: eventType,
		FundID:    &fundID,
		Height:    100 + seq,
		Caller:    uuid.New().String(),
		Payload:   []byte(`{"fund_id":1}`),
		Timestamp: time.Now().UTC(),
	}
}

func TestEventBatchWriteAndReadBack(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)
	events := []persistence.EventRow{
		eventRow(1, "FundCreated", 1),
		eventRow(2, "SharesMinted", 1),
		eventRow(3, "SharesBurned", 1),
	}
	journals := []persistence.JournalRow{
		{
			JournalID:   uuid.New().String(),
			Sequence:    2,
			FundID:      1,
			Holder:      uuid.New().String(),
			JournalType: "shares_minted",
			ShareDelta:  1000,
			ValueDelta:  1000,
			Height:      102,
		},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx, events); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		t.Fatalf("write journals: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	sm := persistence.NewSnapshotManager(db)
	rows, err := sm.LoadEventsFrom(ctx, 1, 10)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 events, got %d", len(rows))
	}
	if rows[0].Sequence != 1 || rows[2].Sequence != 3 {
		t.Fatalf("events out of order: first=%d last=%d", rows[0].Sequence, rows[2].Sequence)
	}
	if rows[1].EventType != "SharesMinted" {
		t.Fatalf("expected SharesMinted, got %s", rows[1].EventType)
	}

	seq, err := sm.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if seq != 3 {
		t.Fatalf("expected latest sequence 3, got %d", seq)
	}
}

func TestEventWriteIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)
	events := []persistence.EventRow{eventRow(1, "FundCreated", 1)}

	for i := 0; i < 2; i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		if err := writer.WriteEventBatch(ctx, tx, events); err != nil {
			t.Fatalf("write attempt %d: %v", i, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit attempt %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fund_log.events WHERE sequence = 1`,
	).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after duplicate write, got %d", count)
	}
}

func TestSnapshotSaveLoadVerify(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	sm := persistence.NewSnapshotManager(db)

	snap := &persistence.SnapshotData{
		Sequence: 42,
		Height:   250,
		Funds: []persistence.FundSnapshot{{
			ID:          1,
			Name:        "Balanced Growth",
			Symbol:      "BGF",
			Manager:     uuid.New().String(),
			TotalShares: 1000000,
			TotalValue:  1000000,
			Active:      true,
		}},
		Vaults:    map[int64]int64{1: 1000000},
		CreatedAt: time.Now().UTC(),
	}
	snap.Config.Owner = uuid.New().String()
	snap.Config.RebalanceInterval = 144

	size, err := sm.SaveSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if size <= 0 {
		t.Fatalf("expected positive snapshot size, got %d", size)
	}

	// Unverified snapshots must not be loadable.
	loaded, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load before verify: %v", err)
	}
	if loaded != nil {
		t.Fatal("loaded unverified snapshot")
	}

	if err := sm.MarkVerified(ctx, 42); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	loaded, err = sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load after verify: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot after verify")
	}
	if loaded.Sequence != 42 || loaded.Height != 250 {
		t.Fatalf("snapshot fields wrong: seq=%d height=%d", loaded.Sequence, loaded.Height)
	}
	if len(loaded.Funds) != 1 || loaded.Funds[0].TotalShares != 1000000 {
		t.Fatalf("snapshot funds wrong: %+v", loaded.Funds)
	}
	if loaded.Vaults[1] != 1000000 {
		t.Fatalf("snapshot vaults wrong: %+v", loaded.Vaults)
	}
}
