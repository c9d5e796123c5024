package event

import "github.com/google/uuid"

// Kind discriminates committed ledger events.
type Kind int32

const (
	KindUnknown Kind = iota
	KindFundCreated
	KindAssetRegistered
	KindFundAssetAdded
	KindSharesMinted
	KindSharesBurned
	KindPriceUpdated
	KindFundRebalanced
	KindFundPaused
	KindFundReactivated
	KindProtocolFeeUpdated
	KindRebalanceThresholdUpdated
	KindRebalanceSignal
)

func (k Kind) String() string {
	switch k {
	case KindFundCreated:
		return "FundCreated"
	case KindAssetRegistered:
		return "AssetRegistered"
	case KindFundAssetAdded:
		return "FundAssetAdded"
	case KindSharesMinted:
		return "SharesMinted"
	case KindSharesBurned:
		return "SharesBurned"
	case KindPriceUpdated:
		return "PriceUpdated"
	case KindFundRebalanced:
		return "FundRebalanced"
	case KindFundPaused:
		return "FundPaused"
	case KindFundReactivated:
		return "FundReactivated"
	case KindProtocolFeeUpdated:
		return "ProtocolFeeUpdated"
	case KindRebalanceThresholdUpdated:
		return "RebalanceThresholdUpdated"
	case KindRebalanceSignal:
		return "RebalanceSignal"
	default:
		return "Unknown"
	}
}

// KindFromString resolves a stored event_type column back to a Kind.
// Returns KindUnknown for unrecognized names.
func KindFromString(s string) Kind {
	for k := KindFundCreated; k <= KindRebalanceSignal; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Envelope wraps every committed event in the log.
type Envelope struct {
	// Global monotonic sequence assigned by the engine.
	Sequence int64 `json:"sequence"`

	Kind Kind `json:"kind"`

	// Fund context (nil for protocol-wide events).
	FundID *int64 `json:"fund_id,omitempty"`

	// Height is the host time counter supplied with the operation,
	// never the wall clock.
	Height int64 `json:"height"`

	// Caller that triggered the operation.
	Caller uuid.UUID `json:"caller"`

	// Kind-specific payload, JSON-encoded for the log.
	Payload interface{} `json:"payload,omitempty"`
}

// JournalType classifies share-register journal rows.
type JournalType string

const (
	JournalSharesMinted JournalType = "shares_minted"
	JournalSharesBurned JournalType = "shares_burned"
)

// Journal is one double-entry row of the share register: a holder's
// position against the fund's outstanding supply. ShareDelta and
// ValueDelta are signed from the holder's perspective.
type Journal struct {
	JournalID  uuid.UUID   `json:"journal_id"`
	FundID     int64       `json:"fund_id"`
	Holder     uuid.UUID   `json:"holder"`
	Type       JournalType `json:"type"`
	ShareDelta int64       `json:"share_delta"`
	ValueDelta int64       `json:"value_delta"`
	Height     int64       `json:"height"`
}
