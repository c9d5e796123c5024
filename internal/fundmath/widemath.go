package fundmath

import (
	"errors"
	"math/big"
	"sync"
)

// Basis-point and gating constants shared across the ledger.
const (
	BpsDenominator           int64 = 10_000
	MaxManagementFeeBps      int64 = 1_000
	MaxProtocolFeeBps        int64 = 1_000
	MaxTargetWeightBps       int64 = 10_000
	MaxRebalanceThresholdBps int64 = 2_000

	// RebalanceInterval is the minimum number of height units between
	// rebalances of one fund (~24 hours of block time).
	RebalanceInterval int64 = 144
)

// ErrDivisionByZero is returned when a pro-rata conversion has a zero
// or negative denominator.
var ErrDivisionByZero = errors.New("division by zero")

// ErrOverflow is returned when a floored quotient does not fit in int64.
var ErrOverflow = errors.New("result overflows int64")

// Pooled big.Int for intermediate 128-bit products.
var widePool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getWide() *big.Int {
	return widePool.Get().(*big.Int)
}

func putWide(v *big.Int) {
	v.SetInt64(0)
	widePool.Put(v)
}

// MulDivFloor computes floor(a * b / den) with a 128-bit intermediate
// product. a, b and den must be non-negative; den must be positive.
// This is the single rounding point of share issuance and redemption:
// the quotient truncates toward zero, never up.
func MulDivFloor(a, b, den int64) (int64, error) {
	if den <= 0 {
		return 0, ErrDivisionByZero
	}

	product := getWide()
	defer putWide(product)

	product.Mul(big.NewInt(a), big.NewInt(b))
	product.Quo(product, big.NewInt(den))

	if !product.IsInt64() {
		return 0, ErrOverflow
	}

	return product.Int64(), nil
}

// WeightDeviation returns |current - target| in basis points. This is
// the primitive rebalance strategies use to size and direct trades.
func WeightDeviation(currentBps, targetBps int64) int64 {
	if currentBps >= targetBps {
		return currentBps - targetBps
	}
	return targetBps - currentBps
}
