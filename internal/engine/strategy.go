package engine

import (
	"FundLedger/internal/event"
	"FundLedger/internal/fundmath"
	"FundLedger/internal/state"
)

// RebalanceStrategy turns the current allocations of a fund into
// advisory trade intents. Strategies never mutate state.
type RebalanceStrategy interface {
	ComputeTrades(allocs []state.Allocation, thresholdBps int64) []event.TradeIntent
}

// ThresholdStrategy emits one intent per allocation whose drift from
// target exceeds the threshold.
type ThresholdStrategy struct{}

func (ThresholdStrategy) ComputeTrades(allocs []state.Allocation, thresholdBps int64) []event.TradeIntent {
	var trades []event.TradeIntent
	for _, a := range allocs {
		dev := fundmath.WeightDeviation(a.CurrentWeightBps, a.TargetWeightBps)
		if dev < thresholdBps {
			continue
		}
		dir := "buy"
		if a.CurrentWeightBps > a.TargetWeightBps {
			dir = "sell"
		}
		trades = append(trades, event.TradeIntent{
			AssetID:      a.AssetID,
			Direction:    dir,
			DeviationBps: dev,
		})
	}
	return trades
}

// MaxDeviation returns the largest drift across allocations, 0 when
// the fund holds none.
func MaxDeviation(allocs []state.Allocation) int64 {
	var max int64
	for _, a := range allocs {
		if dev := fundmath.WeightDeviation(a.CurrentWeightBps, a.TargetWeightBps); dev > max {
			max = dev
		}
	}
	return max
}
