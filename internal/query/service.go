package query

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const maxPageSize = 500

// Service provides read-only access to the durable event log and
// share register. Live fund state is served by the engine; this
// service answers history questions from Postgres.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListFundEvents returns a fund's committed events after the cursor
// sequence, oldest first.
func (s *Service) ListFundEvents(ctx context.Context, fundID int64, after int64, limit int) (*EventPage, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, fund_id, height, caller, payload, timestamp
		FROM fund_log.events
		WHERE fund_id = $1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3
	`, fundID, after, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &EventPage{}
	for rows.Next() {
		var e EventHistoryEntry
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.FundID, &e.Height,
			&e.Caller, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		page.Events = append(page.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Events) > limit {
		page.Events = page.Events[:limit]
		page.NextCursor = page.Events[limit-1].Sequence
	}
	return page, nil
}

// GetHolderJournal returns a holder's mint and burn rows in one fund
// after the cursor sequence, oldest first.
func (s *Service) GetHolderJournal(ctx context.Context, fundID int64, holder uuid.UUID, after int64, limit int) (*JournalPage, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT journal_id, sequence, fund_id, holder, journal_type,
		       share_delta, value_delta, height
		FROM fund_log.journal
		WHERE fund_id = $1 AND holder = $2 AND sequence > $3
		ORDER BY sequence ASC
		LIMIT $4
	`, fundID, holder, after, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &JournalPage{}
	for rows.Next() {
		var j JournalHistoryEntry
		if err := rows.Scan(
			&j.JournalID, &j.Sequence, &j.FundID, &j.Holder,
			&j.JournalType, &j.ShareDelta, &j.ValueDelta, &j.Height,
		); err != nil {
			return nil, err
		}
		page.Journals = append(page.Journals, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Journals) > limit {
		page.Journals = page.Journals[:limit]
		page.NextCursor = page.Journals[limit-1].Sequence
	}
	return page, nil
}

// GetLatestSequence returns the highest durably committed sequence,
// zero when the log is empty.
func (s *Service) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM fund_log.events`,
	).Scan(&seq); err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
