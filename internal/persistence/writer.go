package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"FundLedger/internal/observability"
)

// EventLogWriter writes committed events and share-register journals
// to Postgres using multi-row INSERTs. Writes are idempotent on the
// sequence and journal_id keys so a crashed batch can be replayed.
type EventLogWriter struct {
	db     *sql.DB
	logger zerolog.Logger
}

// EventRow is a row in fund_log.events.
type EventRow struct {
	Sequence  int64
	EventType string
	FundID    *int64
	Height    int64
	Caller    string
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

// JournalRow is a row in fund_log.journal.
type JournalRow struct {
	JournalID   string
	Sequence    int64
	FundID      int64
	Holder      string
	JournalType string
	ShareDelta  int64
	ValueDelta  int64
	Height      int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{
		db:     db,
		logger: observability.NewLogger("persistence"),
	}
}

// execer lets batch writes run inside a caller-owned transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WriteEventBatch writes events to fund_log.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, ex execer, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO fund_log.events
		(sequence, event_type, fund_id, height, caller, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Sequence, e.EventType, e.FundID, e.Height, e.Caller, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch writes share-register rows to fund_log.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, ex execer, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	query := `INSERT INTO fund_log.journal
		(journal_id, sequence, fund_id, holder, journal_type, share_delta, value_delta, height)
		VALUES `

	values := make([]string, 0, len(journals))
	args := make([]interface{}, 0, len(journals)*8)

	for i, j := range journals {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			j.JournalID, j.Sequence, j.FundID, j.Holder,
			j.JournalType, j.ShareDelta, j.ValueDelta, j.Height,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (journal_id) DO NOTHING"

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload JSON-encodes an event payload for storage. A payload
// that fails to marshal is stored as an empty object rather than
// stalling the write path.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
