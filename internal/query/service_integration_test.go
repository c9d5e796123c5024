package query_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"FundLedger/internal/persistence"
	"FundLedger/internal/query"
	"FundLedger/internal/testutil"
)

func TestListFundEventsPagination(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)
	fundID := int64(1)
	var events []persistence.EventRow
	for seq := int64(1); seq <= 5; seq++ {
		events = append(events, persistence.EventRow{
			Sequence:  seq,
			EventType: "SharesMinted",
			FundID:    &fundID,
			Height:    100 + seq,
			Caller:    uuid.New().String(),
			Payload:   []byte(fmt.Sprintf(`{"fund_id":1,"seq":%d}`, seq)),
			Timestamp: time.Now().UTC(),
		})
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx, events); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	svc := query.NewService(db)

	page, err := svc.ListFundEvents(ctx, fundID, 0, 3)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(page.Events))
	}
	if page.NextCursor != 3 {
		t.Fatalf("expected next cursor 3, got %d", page.NextCursor)
	}

	page, err = svc.ListFundEvents(ctx, fundID, page.NextCursor, 3)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page.Events) != 2 {
		t.Fatalf("expected 2 events on final page, got %d", len(page.Events))
	}
	if page.NextCursor != 0 {
		t.Fatalf("expected cursor 0 on final page, got %d", page.NextCursor)
	}
	if page.Events[0].Sequence != 4 {
		t.Fatalf("expected sequence 4 first on second page, got %d", page.Events[0].Sequence)
	}
}

func TestGetHolderJournal(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)
	fundID := int64(1)
	holder := uuid.New()
	other := uuid.New()

	events := []persistence.EventRow{
		{Sequence: 1, EventType: "SharesMinted", FundID: &fundID, Height: 101, Caller: holder.String(), Payload: []byte(`{}`), Timestamp: time.Now().UTC()},
		{Sequence: 2, EventType: "SharesMinted", FundID: &fundID, Height: 102, Caller: other.String(), Payload: []byte(`{}`), Timestamp: time.Now().UTC()},
		{Sequence: 3, EventType: "SharesBurned", FundID: &fundID, Height: 103, Caller: holder.String(), Payload: []byte(`{}`), Timestamp: time.Now().UTC()},
	}
	journals := []persistence.JournalRow{
		{JournalID: uuid.New().String(), Sequence: 1, FundID: fundID, Holder: holder.String(), JournalType: "shares_minted", ShareDelta: 1000, ValueDelta: 1000, Height: 101},
		{JournalID: uuid.New().String(), Sequence: 2, FundID: fundID, Holder: other.String(), JournalType: "shares_minted", ShareDelta: 500, ValueDelta: 500, Height: 102},
		{JournalID: uuid.New().String(), Sequence: 3, FundID: fundID, Holder: holder.String(), JournalType: "shares_burned", ShareDelta: -400, ValueDelta: -400, Height: 103},
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

	svc := query.NewService(db)
	page, err := svc.GetHolderJournal(ctx, fundID, holder, 0, 10)
	if err != nil {
		t.Fatalf("holder journal: %v", err)
	}
	if len(page.Journals) != 2 {
		t.Fatalf("expected 2 journal rows for holder, got %d", len(page.Journals))
	}
	if page.Journals[0].ShareDelta != 1000 || page.Journals[1].ShareDelta != -400 {
		t.Fatalf("journal deltas wrong: %+v", page.Journals)
	}
	if page.NextCursor != 0 {
		t.Fatalf("expected cursor 0, got %d", page.NextCursor)
	}
}
