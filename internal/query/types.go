package query

import (
	"encoding/json"
	"time"
)

// EventHistoryEntry is one committed event from the log.
type EventHistoryEntry struct {
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	FundID    *int64          `json:"fund_id,omitempty"`
	Height    int64           `json:"height"`
	Caller    string          `json:"caller"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// JournalHistoryEntry is one share-register row.
type JournalHistoryEntry struct {
	JournalID   string `json:"journal_id"`
	Sequence    int64  `json:"sequence"`
	FundID      int64  `json:"fund_id"`
	Holder      string `json:"holder"`
	JournalType string `json:"journal_type"`
	ShareDelta  int64  `json:"share_delta"`
	ValueDelta  int64  `json:"value_delta"`
	Height      int64  `json:"height"`
}

// EventPage is a cursor-paginated slice of the event log. NextCursor
// is the sequence to pass as the next after value, zero when the page
// is the last.
type EventPage struct {
	Events     []EventHistoryEntry `json:"events"`
	NextCursor int64               `json:"next_cursor,omitempty"`
}

// JournalPage is a cursor-paginated slice of the share register.
type JournalPage struct {
	Journals   []JournalHistoryEntry `json:"journals"`
	NextCursor int64                 `json:"next_cursor,omitempty"`
}
