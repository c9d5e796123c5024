package event

import "github.com/google/uuid"

// Payload structs serialized into Envelope.Payload. Snapshot replay
// re-applies these, so they carry the full resulting state of the
// operation rather than just the inputs.

type FundCreated struct {
	FundID           int64     `json:"fund_id"`
	Name             string    `json:"name"`
	Symbol           string    `json:"symbol"`
	Manager          uuid.UUID `json:"manager"`
	ManagementFeeBps int64     `json:"management_fee_bps"`
}

type AssetRegistered struct {
	AssetID   int64  `json:"asset_id"`
	TokenRef  string `json:"token_ref"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	OracleRef string `json:"oracle_ref,omitempty"`
}

type FundAssetAdded struct {
	FundID          int64  `json:"fund_id"`
	AssetID         int64  `json:"asset_id"`
	TokenRef        string `json:"token_ref"`
	TargetWeightBps int64  `json:"target_weight_bps"`
}

type SharesMinted struct {
	FundID         int64     `json:"fund_id"`
	Holder         uuid.UUID `json:"holder"`
	Amount         int64     `json:"amount"`
	SharesMinted   int64     `json:"shares_minted"`
	TotalShares    int64     `json:"total_shares"`
	TotalValue     int64     `json:"total_value"`
	HolderShares   int64     `json:"holder_shares"`
	TotalDeposited int64     `json:"total_deposited"`
}

type SharesBurned struct {
	FundID       int64     `json:"fund_id"`
	Holder       uuid.UUID `json:"holder"`
	SharesBurned int64     `json:"shares_burned"`
	AmountOut    int64     `json:"amount_out"`
	TotalShares  int64     `json:"total_shares"`
	TotalValue   int64     `json:"total_value"`
	HolderShares int64     `json:"holder_shares"`
}

type PriceUpdated struct {
	FundID   int64 `json:"fund_id"`
	AssetID  int64 `json:"asset_id"`
	Price    int64 `json:"price"`
	Balance  int64 `json:"balance"`
	NewValue int64 `json:"new_value"`
}

// TradeIntent is an advisory rebalance instruction. Direction is
// "buy" when the allocation is under target, "sell" when over.
type TradeIntent struct {
	AssetID      int64  `json:"asset_id"`
	Direction    string `json:"direction"`
	DeviationBps int64  `json:"deviation_bps"`
}

type FundRebalanced struct {
	FundID        int64         `json:"fund_id"`
	Height        int64         `json:"height"`
	Trades        []TradeIntent `json:"trades"`
	LastRebalance int64         `json:"last_rebalance"`
}

type FundPaused struct {
	FundID int64 `json:"fund_id"`
}

type FundReactivated struct {
	FundID int64 `json:"fund_id"`
}

type ProtocolFeeUpdated struct {
	ProtocolFeeBps int64 `json:"protocol_fee_bps"`
}

type RebalanceThresholdUpdated struct {
	RebalanceThresholdBps int64 `json:"rebalance_threshold_bps"`
}

// RebalanceSignal is emitted by the scheduler when a fund crosses its
// drift threshold. It commits no state change.
type RebalanceSignal struct {
	FundID          int64 `json:"fund_id"`
	MaxDeviationBps int64 `json:"max_deviation_bps"`
	Height          int64 `json:"height"`
}
