package engine

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"FundLedger/internal/event"
	"FundLedger/internal/fundmath"
	"FundLedger/internal/registry"
	"FundLedger/internal/state"
)

// Bounded-length limits for fund and asset text fields, in bytes.
const (
	MaxNameLen   = 32
	MaxSymbolLen = 10
)

// CreateFund registers a new fund under the caller's management.
// Owner-only. Fund ids are monotonic and assigned only on success, so
// a rejected creation never burns an id.
func (l *Ledger) CreateFund(caller uuid.UUID, name, symbol string, managementFeeBps int64) (int64, error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.config.Owner {
		return 0, l.reject("create_fund", fmt.Errorf("create fund: %w", ErrOwnerOnly))
	}
	if managementFeeBps < 0 || managementFeeBps > fundmath.MaxManagementFeeBps {
		return 0, l.reject("create_fund", fmt.Errorf("management fee %d: %w", managementFeeBps, ErrInvalidAmount))
	}
	if name == "" || len(name) > MaxNameLen || symbol == "" || len(symbol) > MaxSymbolLen {
		return 0, l.reject("create_fund", fmt.Errorf("fund name/symbol: %w", ErrInvalidToken))
	}

	h := l.clock.Height()
	f := l.funds.Create(state.Fund{
		Name:             name,
		Symbol:           symbol,
		Manager:          caller,
		Active:           true,
		CreatedAt:        h,
		LastRebalance:    h,
		ManagementFeeBps: managementFeeBps,
		Version:          1,
	})

	if l.metrics != nil {
		l.metrics.FundsTotal.Set(float64(l.funds.NextID() - 1))
	}
	l.setFundGauges(f)
	l.commit(event.KindFundCreated, &f.ID, caller, event.FundCreated{
		FundID:           f.ID,
		Name:             f.Name,
		Symbol:           f.Symbol,
		Manager:          f.Manager,
		ManagementFeeBps: f.ManagementFeeBps,
	}, nil)

	l.logger.Info().Int64("fund_id", f.ID).Str("symbol", f.Symbol).Msg("fund created")
	l.applied("create_fund", start)
	return f.ID, nil
}

// RegisterAsset stores asset metadata. Owner-only. Re-registering an
// id overwrites the record and reactivates the asset.
func (l *Ledger) RegisterAsset(caller uuid.UUID, assetID int64, tokenRef, symbol string, decimals uint8, oracleRef string) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.config.Owner {
		return l.reject("register_asset", fmt.Errorf("register asset: %w", ErrOwnerOnly))
	}
	if assetID <= 0 || tokenRef == "" || symbol == "" || len(symbol) > MaxSymbolLen {
		return l.reject("register_asset", fmt.Errorf("asset %d metadata: %w", assetID, ErrInvalidToken))
	}

	l.assets.Register(registry.Asset{
		ID:        assetID,
		TokenRef:  tokenRef,
		Symbol:    symbol,
		Decimals:  decimals,
		OracleRef: oracleRef,
	})

	l.commit(event.KindAssetRegistered, nil, caller, event.AssetRegistered{
		AssetID:   assetID,
		TokenRef:  tokenRef,
		Symbol:    symbol,
		Decimals:  decimals,
		OracleRef: oracleRef,
	}, nil)

	l.applied("register_asset", start)
	return nil
}

// AddFundAsset records a target allocation of a fund toward a
// registered, active asset. Manager or owner only. Target weight sums
// across a fund are not capped here; GetFund surfaces the sum.
func (l *Ledger) AddFundAsset(caller uuid.UUID, fundID, assetID, targetWeightBps int64) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return l.reject("add_fund_asset", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if caller != f.Manager && caller != l.config.Owner {
		return l.reject("add_fund_asset", fmt.Errorf("fund %d allocation: %w", fundID, ErrUnauthorized))
	}
	if targetWeightBps < 0 || targetWeightBps > fundmath.MaxTargetWeightBps {
		return l.reject("add_fund_asset", fmt.Errorf("target weight %d: %w", targetWeightBps, ErrInvalidWeight))
	}
	asset, ok := l.assets.Get(assetID)
	if !ok {
		return l.reject("add_fund_asset", fmt.Errorf("asset %d: %w", assetID, ErrNotFound))
	}
	if !asset.Active {
		return l.reject("add_fund_asset", fmt.Errorf("asset %d inactive: %w", assetID, ErrInvalidToken))
	}

	l.allocations.Put(state.Allocation{
		FundID:          fundID,
		AssetID:         assetID,
		TokenRef:        asset.TokenRef,
		TargetWeightBps: targetWeightBps,
	})

	l.commit(event.KindFundAssetAdded, &fundID, caller, event.FundAssetAdded{
		FundID:          fundID,
		AssetID:         assetID,
		TokenRef:        asset.TokenRef,
		TargetWeightBps: targetWeightBps,
	}, nil)

	l.applied("add_fund_asset", start)
	return nil
}

// Deposit converts principal into fund shares at current NAV. Custody
// moves first; the ledger mutates only after the transfer succeeds.
// The first deposit into an empty fund mints one share per base unit.
func (l *Ledger) Deposit(caller uuid.UUID, fundID, amount int64) (int64, error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount <= 0 {
		return 0, l.reject("deposit", fmt.Errorf("deposit amount %d: %w", amount, ErrInvalidAmount))
	}
	f := l.funds.Get(fundID)
	if f == nil {
		return 0, l.reject("deposit", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if !f.Active {
		return 0, l.reject("deposit", fmt.Errorf("fund %d: %w", fundID, ErrFundInactive))
	}

	var minted int64
	if f.TotalShares == 0 || f.TotalValue == 0 {
		minted = amount
	} else {
		var err error
		minted, err = fundmath.MulDivFloor(amount, f.TotalShares, f.TotalValue)
		if err != nil {
			return 0, l.reject("deposit", fmt.Errorf("share conversion fund %d: %w", fundID, ErrInvalidAmount))
		}
	}
	if minted <= 0 {
		return 0, l.reject("deposit", fmt.Errorf("deposit %d mints no shares: %w", amount, ErrInvalidAmount))
	}
	// Aggregate headroom check so the additions below cannot wrap.
	if f.TotalShares > math.MaxInt64-minted || f.TotalValue > math.MaxInt64-amount {
		return 0, l.reject("deposit", fmt.Errorf("fund %d supply at capacity: %w", fundID, ErrInvalidAmount))
	}

	if err := l.custodian.TransferIn(fundID, caller, amount); err != nil {
		return 0, l.reject("deposit", fmt.Errorf("deposit custody fund %d: %w", fundID, err))
	}

	h := l.clock.Height()
	pos := l.positions.GetOrCreate(fundID, caller)
	pos.Shares += minted
	pos.LastDeposit = h
	pos.TotalDeposited += amount
	f.TotalShares += minted
	f.TotalValue += amount
	f.Version++

	l.checkConservation(f)
	l.setFundGauges(f)

	l.commit(event.KindSharesMinted, &fundID, caller, event.SharesMinted{
		FundID:         fundID,
		Holder:         caller,
		Amount:         amount,
		SharesMinted:   minted,
		TotalShares:    f.TotalShares,
		TotalValue:     f.TotalValue,
		HolderShares:   pos.Shares,
		TotalDeposited: pos.TotalDeposited,
	}, []event.Journal{{
		JournalID:  uuid.New(),
		FundID:     fundID,
		Holder:     caller,
		Type:       event.JournalSharesMinted,
		ShareDelta: minted,
		ValueDelta: amount,
		Height:     h,
	}})

	l.applied("deposit", start)
	return minted, nil
}

// Withdraw burns shares and pays out their NAV value. The custody
// payout happens before the ledger commit so a failed transfer leaves
// the register untouched.
func (l *Ledger) Withdraw(caller uuid.UUID, fundID, shares int64) (int64, error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if shares <= 0 {
		return 0, l.reject("withdraw", fmt.Errorf("withdraw shares %d: %w", shares, ErrInvalidAmount))
	}
	f := l.funds.Get(fundID)
	if f == nil {
		return 0, l.reject("withdraw", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if !f.Active {
		return 0, l.reject("withdraw", fmt.Errorf("fund %d: %w", fundID, ErrFundInactive))
	}
	held := l.positions.Get(fundID, caller)
	if held.Shares < shares {
		return 0, l.reject("withdraw", fmt.Errorf("holder has %d of %d shares: %w", held.Shares, shares, ErrInsufficientBalance))
	}
	// Unreachable while conservation holds, guarded anyway.
	if f.TotalShares <= 0 {
		return 0, l.reject("withdraw", fmt.Errorf("fund %d has no supply: %w", fundID, ErrNotFound))
	}

	value, err := fundmath.MulDivFloor(shares, f.TotalValue, f.TotalShares)
	if err != nil {
		return 0, l.reject("withdraw", fmt.Errorf("value conversion fund %d: %w", fundID, ErrInvalidAmount))
	}

	if value > 0 {
		if err := l.custodian.TransferOut(fundID, caller, value); err != nil {
			return 0, l.reject("withdraw", fmt.Errorf("withdraw custody fund %d: %w", fundID, err))
		}
	}

	h := l.clock.Height()
	pos := l.positions.GetOrCreate(fundID, caller)
	pos.Shares -= shares
	f.TotalShares -= shares
	f.TotalValue -= value
	f.Version++

	l.checkConservation(f)
	l.setFundGauges(f)

	l.commit(event.KindSharesBurned, &fundID, caller, event.SharesBurned{
		FundID:       fundID,
		Holder:       caller,
		SharesBurned: shares,
		AmountOut:    value,
		TotalShares:  f.TotalShares,
		TotalValue:   f.TotalValue,
		HolderShares: pos.Shares,
	}, []event.Journal{{
		JournalID:  uuid.New(),
		FundID:     fundID,
		Holder:     caller,
		Type:       event.JournalSharesBurned,
		ShareDelta: -shares,
		ValueDelta: -value,
		Height:     h,
	}})

	l.applied("withdraw", start)
	return value, nil
}

// RebalanceFund stamps the rebalance height and returns advisory
// trade intents. Manager or owner only; gated on the configured
// interval since the last rebalance. Asset movement stays with the
// strategy consumer.
func (l *Ledger) RebalanceFund(caller uuid.UUID, fundID int64) ([]event.TradeIntent, error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return nil, l.reject("rebalance_fund", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if !f.Active {
		return nil, l.reject("rebalance_fund", fmt.Errorf("fund %d: %w", fundID, ErrFundInactive))
	}
	if caller != f.Manager && caller != l.config.Owner {
		return nil, l.reject("rebalance_fund", fmt.Errorf("fund %d rebalance: %w", fundID, ErrUnauthorized))
	}
	h := l.clock.Height()
	if h-f.LastRebalance < l.config.RebalanceInterval {
		return nil, l.reject("rebalance_fund", fmt.Errorf("fund %d last rebalanced at %d: %w", fundID, f.LastRebalance, ErrRebalanceNotNeeded))
	}

	trades := l.strategy.ComputeTrades(l.allocationsLocked(fundID), l.config.RebalanceThresholdBps)
	f.LastRebalance = h
	f.Version++

	l.commit(event.KindFundRebalanced, &fundID, caller, event.FundRebalanced{
		FundID:        fundID,
		Height:        h,
		Trades:        trades,
		LastRebalance: h,
	}, nil)

	l.logger.Info().Int64("fund_id", fundID).Int("trades", len(trades)).Msg("fund rebalanced")
	l.applied("rebalance_fund", start)
	return trades, nil
}

// UpdateAssetPrice records a new price for one allocation and
// recomputes the fund's current weights mark-to-market. Manager or
// owner only.
func (l *Ledger) UpdateAssetPrice(caller uuid.UUID, fundID, assetID, price int64) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return l.reject("update_asset_price", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if caller != f.Manager && caller != l.config.Owner {
		return l.reject("update_asset_price", fmt.Errorf("fund %d price update: %w", fundID, ErrUnauthorized))
	}
	if price <= 0 {
		return l.reject("update_asset_price", fmt.Errorf("price %d: %w", price, ErrInvalidAmount))
	}
	alloc := l.allocations.Get(fundID, assetID)
	if alloc == nil {
		return l.reject("update_asset_price", fmt.Errorf("allocation %d/%d: %w", fundID, assetID, ErrNotFound))
	}

	alloc.LastPrice = price
	newValue := l.reweighLocked(fundID, assetID)

	l.commit(event.KindPriceUpdated, &fundID, caller, event.PriceUpdated{
		FundID:   fundID,
		AssetID:  assetID,
		Price:    price,
		Balance:  alloc.Balance,
		NewValue: newValue,
	}, nil)

	l.applied("update_asset_price", start)
	return nil
}

// reweighLocked recomputes current weights for a fund from allocation
// balances and last prices, returning the marked value of assetID.
// Weights stay untouched when the fund's marked total is zero.
func (l *Ledger) reweighLocked(fundID, assetID int64) int64 {
	allocs := l.allocations.ByFund(fundID)

	var total, target int64
	values := make(map[int64]int64, len(allocs))
	for _, a := range allocs {
		v, err := fundmath.MulDivFloor(a.Balance, a.LastPrice, 1)
		if err != nil {
			continue
		}
		values[a.AssetID] = v
		total += v
		if a.AssetID == assetID {
			target = v
		}
	}
	if total <= 0 {
		return target
	}
	for _, a := range allocs {
		w, err := fundmath.MulDivFloor(values[a.AssetID], fundmath.BpsDenominator, total)
		if err != nil {
			continue
		}
		a.CurrentWeightBps = w
	}
	return target
}

// PauseFund moves an active fund to paused. Owner-only.
func (l *Ledger) PauseFund(caller uuid.UUID, fundID int64) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return l.reject("pause_fund", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if caller != l.config.Owner {
		return l.reject("pause_fund", fmt.Errorf("pause fund %d: %w", fundID, ErrOwnerOnly))
	}
	if !f.Active {
		return l.reject("pause_fund", fmt.Errorf("fund %d already paused: %w", fundID, ErrFundInactive))
	}

	f.Active = false
	f.Version++
	l.commit(event.KindFundPaused, &fundID, caller, event.FundPaused{FundID: fundID}, nil)

	l.logger.Warn().Int64("fund_id", fundID).Msg("fund paused")
	l.applied("pause_fund", start)
	return nil
}

// ReactivateFund moves a paused fund back to active. Owner-only.
func (l *Ledger) ReactivateFund(caller uuid.UUID, fundID int64) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return l.reject("reactivate_fund", fmt.Errorf("fund %d: %w", fundID, ErrNotFound))
	}
	if caller != l.config.Owner {
		return l.reject("reactivate_fund", fmt.Errorf("reactivate fund %d: %w", fundID, ErrOwnerOnly))
	}
	if f.Active {
		return l.reject("reactivate_fund", fmt.Errorf("fund %d already active: %w", fundID, ErrFundInactive))
	}

	f.Active = true
	f.Version++
	l.commit(event.KindFundReactivated, &fundID, caller, event.FundReactivated{FundID: fundID}, nil)

	l.logger.Info().Int64("fund_id", fundID).Msg("fund reactivated")
	l.applied("reactivate_fund", start)
	return nil
}

// UpdateProtocolFee sets the protocol fee rate. Owner-only, capped at
// 1000 basis points.
func (l *Ledger) UpdateProtocolFee(caller uuid.UUID, feeBps int64) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.config.Owner {
		return l.reject("update_protocol_fee", fmt.Errorf("protocol fee: %w", ErrOwnerOnly))
	}
	if feeBps < 0 || feeBps > fundmath.MaxProtocolFeeBps {
		return l.reject("update_protocol_fee", fmt.Errorf("protocol fee %d: %w", feeBps, ErrInvalidAmount))
	}

	l.config.ProtocolFeeBps = feeBps
	l.commit(event.KindProtocolFeeUpdated, nil, caller, event.ProtocolFeeUpdated{ProtocolFeeBps: feeBps}, nil)

	l.applied("update_protocol_fee", start)
	return nil
}

// UpdateRebalanceThreshold sets the drift threshold. Owner-only,
// capped at 2000 basis points.
func (l *Ledger) UpdateRebalanceThreshold(caller uuid.UUID, thresholdBps int64) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.config.Owner {
		return l.reject("update_rebalance_threshold", fmt.Errorf("rebalance threshold: %w", ErrOwnerOnly))
	}
	if thresholdBps < 0 || thresholdBps > fundmath.MaxRebalanceThresholdBps {
		return l.reject("update_rebalance_threshold", fmt.Errorf("rebalance threshold %d: %w", thresholdBps, ErrInvalidAmount))
	}

	l.config.RebalanceThresholdBps = thresholdBps
	l.commit(event.KindRebalanceThresholdUpdated, nil, caller, event.RebalanceThresholdUpdated{RebalanceThresholdBps: thresholdBps}, nil)

	l.applied("update_rebalance_threshold", start)
	return nil
}

// ScanRebalanceSignals emits a drift signal for every active fund
// whose interval has elapsed and whose worst allocation drift meets
// the threshold. Called by the scheduler; commits no state change.
func (l *Ledger) ScanRebalanceSignals() []event.RebalanceSignal {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.clock.Height()
	var signals []event.RebalanceSignal
	for _, f := range l.funds.All() {
		if !f.Active || h-f.LastRebalance < l.config.RebalanceInterval {
			continue
		}
		dev := MaxDeviation(l.allocationsLocked(f.ID))
		if dev < l.config.RebalanceThresholdBps {
			continue
		}
		sig := event.RebalanceSignal{FundID: f.ID, MaxDeviationBps: dev, Height: h}
		signals = append(signals, sig)
		fundID := f.ID
		l.commit(event.KindRebalanceSignal, &fundID, l.config.Owner, sig, nil)
		if l.metrics != nil {
			l.metrics.RebalanceSignals.WithLabelValues(strconv.FormatInt(f.ID, 10)).Inc()
		}
	}
	if l.metrics != nil {
		l.metrics.RebalanceScanDur.Observe(time.Since(start).Seconds())
	}
	return signals
}
