package engine_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"FundLedger/internal/engine"
	"FundLedger/internal/event"
)

var (
	owner   = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	walletA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	walletB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func newTestLedger(t *testing.T) (*engine.Ledger, *engine.ManualClock, *engine.VaultCustodian) {
	t.Helper()
	clock := &engine.ManualClock{H: 100}
	custodian := engine.NewVaultCustodian()
	l := engine.NewLedger(owner, custodian, engine.ThresholdStrategy{}, clock, nil, nil, nil)
	return l, clock, custodian
}

func mustCreateFund(t *testing.T, l *engine.Ledger, feeBps int64) int64 {
	t.Helper()
	id, err := l.CreateFund(owner, "Index Fund", "IDX", feeBps)
	if err != nil {
		t.Fatalf("create fund: %v", err)
	}
	return id
}

func TestCreateFundAssignsMonotonicIDs(t *testing.T) {
	l, _, _ := newTestLedger(t)

	id1 := mustCreateFund(t, l, 200)
	id2 := mustCreateFund(t, l, 300)
	if id1 != 1 || id2 != 2 {
		t.Fatalf("got ids %d, %d, want 1, 2", id1, id2)
	}

	f, err := l.GetFund(id1)
	if err != nil {
		t.Fatalf("get fund: %v", err)
	}
	if !f.Active || f.TotalShares != 0 || f.ManagementFeeBps != 200 {
		t.Fatalf("unexpected fund state: %+v", f)
	}
}

func TestCreateFundRejectsExcessiveFee(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.CreateFund(owner, "Greedy", "GRD", 1500)
	if !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}

	// A rejected creation must not burn the next id.
	id := mustCreateFund(t, l, 200)
	if id != 1 {
		t.Fatalf("got id %d after rejected create, want 1", id)
	}
}

func TestCreateFundOwnerOnly(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.CreateFund(walletA, "Rogue", "RGE", 100)
	if !errors.Is(err, engine.ErrOwnerOnly) {
		t.Fatalf("got %v, want ErrOwnerOnly", err)
	}
	if engine.Code(err) != 100 {
		t.Fatalf("got code %d, want 100", engine.Code(err))
	}
}

func TestCreateFundRejectsBadNames(t *testing.T) {
	l, _, _ := newTestLedger(t)

	cases := []struct {
		name, symbol string
	}{
		{"", "IDX"},
		{"Fund", ""},
		{"this fund name is far too long to fit the limit", "IDX"},
		{"Fund", "TOOLONGSYMBOL"},
	}
	for _, c := range cases {
		if _, err := l.CreateFund(owner, c.name, c.symbol, 100); !errors.Is(err, engine.ErrInvalidToken) {
			t.Fatalf("name %q symbol %q: got %v, want ErrInvalidToken", c.name, c.symbol, err)
		}
	}
}

func TestBootstrapDepositMintsOneToOne(t *testing.T) {
	l, _, custodian := newTestLedger(t)
	fundID := mustCreateFund(t, l, 200)

	minted, err := l.Deposit(walletA, fundID, 1_000_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted != 1_000_000 {
		t.Fatalf("got %d shares, want 1000000", minted)
	}

	f, _ := l.GetFund(fundID)
	if f.TotalShares != 1_000_000 || f.TotalValue != 1_000_000 {
		t.Fatalf("supply=%d value=%d, want 1000000/1000000", f.TotalShares, f.TotalValue)
	}
	if bal := custodian.VaultBalance(fundID); bal != 1_000_000 {
		t.Fatalf("vault balance %d, want 1000000", bal)
	}
}

func TestProportionalMintingFloors(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 0)

	if _, err := l.Deposit(walletA, fundID, 1000); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}

	// Simulate appreciation: NAV 3000, supply 1000. A 1000 deposit
	// mints floor(1000*1000/3000) = 333 shares.
	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, ""); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	// Appreciation is injected through replay patching in place of a
	// live market; only supply and value matter below.
	snap := l.CreateSnapshotState()
	snap.Funds[0].TotalValue = 3000
	l.RestoreFromSnapshot(snap)

	minted, err := l.Deposit(walletB, fundID, 1000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted != 333 {
		t.Fatalf("got %d shares, want 333", minted)
	}
}

func TestDepositValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if _, err := l.Deposit(walletA, fundID, 0); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := l.Deposit(walletA, fundID, -5); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := l.Deposit(walletA, 99, 100); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("missing fund: got %v, want ErrNotFound", err)
	}
}

func TestDepositNearSupplyCapacityRejected(t *testing.T) {
	l, _, custodian := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	huge := int64(1) << 62
	if _, err := l.Deposit(walletA, fundID, huge); err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	// A second deposit of the same size would push supply and value
	// past int64; it must reject, not wrap.
	if _, err := l.Deposit(walletB, fundID, huge); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}

	f, err := l.GetFund(fundID)
	if err != nil {
		t.Fatalf("get fund: %v", err)
	}
	if f.TotalShares != huge || f.TotalValue != huge {
		t.Fatalf("fund mutated by rejected deposit: shares=%d value=%d", f.TotalShares, f.TotalValue)
	}
	if got := custodian.VaultBalance(fundID); got != huge {
		t.Fatalf("vault mutated by rejected deposit: %d", got)
	}
	pos, _ := l.GetUserPosition(fundID, walletB)
	if pos.Shares != 0 {
		t.Fatalf("position minted by rejected deposit: %+v", pos)
	}
}

func TestWithdrawScenario(t *testing.T) {
	l, _, custodian := newTestLedger(t)
	fundID := mustCreateFund(t, l, 200)

	if _, err := l.Deposit(walletA, fundID, 1_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	value, err := l.Withdraw(walletA, fundID, 500_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if value != 500_000 {
		t.Fatalf("got %d, want 500000", value)
	}

	pos, err := l.GetUserPosition(fundID, walletA)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos.Shares != 500_000 {
		t.Fatalf("holder shares %d, want 500000", pos.Shares)
	}
	f, _ := l.GetFund(fundID)
	if f.TotalShares != 500_000 || f.TotalValue != 500_000 {
		t.Fatalf("supply=%d value=%d, want 500000/500000", f.TotalShares, f.TotalValue)
	}
	if bal := custodian.VaultBalance(fundID); bal != 500_000 {
		t.Fatalf("vault balance %d, want 500000", bal)
	}
}

func TestWithdrawNeverGains(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 0)

	if _, err := l.Deposit(walletA, fundID, 1000); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Second depositor at uneven NAV loses to flooring on the round
	// trip, never gains.
	snap := l.CreateSnapshotState()
	snap.Funds[0].TotalValue = 3000
	l.RestoreFromSnapshot(snap)

	minted, err := l.Deposit(walletB, fundID, 1000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	back, err := l.Withdraw(walletB, fundID, minted)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if back > 1000 {
		t.Fatalf("round trip returned %d, more than deposited 1000", back)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if _, err := l.Deposit(walletA, fundID, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := l.Withdraw(walletB, fundID, 1); !errors.Is(err, engine.ErrInsufficientBalance) {
		t.Fatalf("stranger withdraw: got %v, want ErrInsufficientBalance", err)
	}
	if _, err := l.Withdraw(walletA, fundID, 1001); !errors.Is(err, engine.ErrInsufficientBalance) {
		t.Fatalf("oversized withdraw: got %v, want ErrInsufficientBalance", err)
	}

	// Rejections leave positions untouched.
	pos, _ := l.GetUserPosition(fundID, walletA)
	if pos.Shares != 1000 {
		t.Fatalf("holder shares %d after rejections, want 1000", pos.Shares)
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	deposits := []struct {
		holder uuid.UUID
		amount int64
	}{
		{walletA, 1_000_000},
		{walletB, 250_000},
		{walletA, 777},
		{walletB, 13},
	}
	for _, d := range deposits {
		if _, err := l.Deposit(d.holder, fundID, d.amount); err != nil {
			t.Fatalf("deposit %d: %v", d.amount, err)
		}
	}
	if _, err := l.Withdraw(walletA, fundID, 123_456); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	f, _ := l.GetFund(fundID)
	posA, _ := l.GetUserPosition(fundID, walletA)
	posB, _ := l.GetUserPosition(fundID, walletB)
	if posA.Shares+posB.Shares != f.TotalShares {
		t.Fatalf("conservation broken: %d + %d != %d", posA.Shares, posB.Shares, f.TotalShares)
	}
}

type refusingCustodian struct{}

func (refusingCustodian) TransferIn(fundID int64, holder uuid.UUID, amount int64) error {
	return errors.New("custody offline")
}

func (refusingCustodian) TransferOut(fundID int64, holder uuid.UUID, amount int64) error {
	return errors.New("custody offline")
}

func TestCustodyFailureLeavesLedgerUntouched(t *testing.T) {
	clock := &engine.ManualClock{H: 100}
	l := engine.NewLedger(owner, refusingCustodian{}, engine.ThresholdStrategy{}, clock, nil, nil, nil)
	fundID := mustCreateFund(t, l, 100)

	if _, err := l.Deposit(walletA, fundID, 1000); err == nil {
		t.Fatal("deposit succeeded with refusing custodian")
	}

	f, _ := l.GetFund(fundID)
	if f.TotalShares != 0 || f.TotalValue != 0 {
		t.Fatalf("ledger mutated after custody failure: %+v", f)
	}
	pos, _ := l.GetUserPosition(fundID, walletA)
	if pos.Shares != 0 || pos.TotalDeposited != 0 {
		t.Fatalf("position mutated after custody failure: %+v", pos)
	}
}

func TestRebalanceGate(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	_, err := l.RebalanceFund(owner, fundID)
	if !errors.Is(err, engine.ErrRebalanceNotNeeded) {
		t.Fatalf("immediately after creation: got %v, want ErrRebalanceNotNeeded", err)
	}

	clock.H += 143
	if _, err := l.RebalanceFund(owner, fundID); !errors.Is(err, engine.ErrRebalanceNotNeeded) {
		t.Fatalf("one unit early: got %v, want ErrRebalanceNotNeeded", err)
	}

	clock.H++
	if _, err := l.RebalanceFund(owner, fundID); err != nil {
		t.Fatalf("at interval: %v", err)
	}

	f, _ := l.GetFund(fundID)
	if f.LastRebalance != clock.H {
		t.Fatalf("last rebalance %d, want %d", f.LastRebalance, clock.H)
	}

	// The gate re-arms from the new stamp.
	if _, err := l.RebalanceFund(owner, fundID); !errors.Is(err, engine.ErrRebalanceNotNeeded) {
		t.Fatalf("immediately after rebalance: got %v, want ErrRebalanceNotNeeded", err)
	}
}

func TestRebalanceAuthorization(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)
	clock.H += 144

	if _, err := l.RebalanceFund(walletA, fundID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("stranger rebalance: got %v, want ErrUnauthorized", err)
	}
	if _, err := l.RebalanceFund(owner, fundID); err != nil {
		t.Fatalf("owner rebalance: %v", err)
	}
}

func TestRebalanceEmitsTradeIntents(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, ""); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	if err := l.AddFundAsset(owner, fundID, 1, 5000); err != nil {
		t.Fatalf("add fund asset: %v", err)
	}

	clock.H += 144
	trades, err := l.RebalanceFund(owner, fundID)
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	// Current weight 0 vs target 5000 drifts past the default 500
	// threshold, so the allocation needs buying.
	if len(trades) != 1 || trades[0].Direction != "buy" || trades[0].DeviationBps != 5000 {
		t.Fatalf("unexpected trades: %+v", trades)
	}
}

func TestAddFundAssetValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if err := l.AddFundAsset(owner, fundID, 1, 5000); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("unregistered asset: got %v, want ErrNotFound", err)
	}

	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, ""); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	if err := l.AddFundAsset(owner, fundID, 1, 15000); !errors.Is(err, engine.ErrInvalidWeight) {
		t.Fatalf("weight 15000: got %v, want ErrInvalidWeight", err)
	}
	if err := l.AddFundAsset(walletA, fundID, 1, 5000); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("stranger: got %v, want ErrUnauthorized", err)
	}
	if err := l.AddFundAsset(owner, fundID, 1, 5000); err != nil {
		t.Fatalf("valid add: %v", err)
	}

	a, err := l.GetFundAsset(fundID, 1)
	if err != nil {
		t.Fatalf("get fund asset: %v", err)
	}
	if a.TargetWeightBps != 5000 || a.TokenRef != "SP1.token-a" {
		t.Fatalf("unexpected allocation: %+v", a)
	}

	f, _ := l.GetFund(fundID)
	if f.TargetWeightSumBps != 5000 {
		t.Fatalf("weight sum %d, want 5000", f.TargetWeightSumBps)
	}
}

func TestPauseLifecycle(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if err := l.PauseFund(walletA, fundID); !errors.Is(err, engine.ErrOwnerOnly) {
		t.Fatalf("stranger pause: got %v, want ErrOwnerOnly", err)
	}
	if err := l.ReactivateFund(owner, fundID); !errors.Is(err, engine.ErrFundInactive) {
		t.Fatalf("reactivate active fund: got %v, want ErrFundInactive", err)
	}

	if err := l.PauseFund(owner, fundID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := l.PauseFund(owner, fundID); !errors.Is(err, engine.ErrFundInactive) {
		t.Fatalf("double pause: got %v, want ErrFundInactive", err)
	}

	if _, err := l.Deposit(walletA, fundID, 1000); !errors.Is(err, engine.ErrFundInactive) {
		t.Fatalf("deposit while paused: got %v, want ErrFundInactive", err)
	}
	if _, err := l.CalculateFundNav(fundID); !errors.Is(err, engine.ErrFundInactive) {
		t.Fatalf("nav while paused: got %v, want ErrFundInactive", err)
	}

	if err := l.ReactivateFund(owner, fundID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := l.Deposit(walletA, fundID, 1000); err != nil {
		t.Fatalf("deposit after reactivate: %v", err)
	}
}

func TestProtocolSetters(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if err := l.UpdateProtocolFee(walletA, 200); !errors.Is(err, engine.ErrOwnerOnly) {
		t.Fatalf("stranger fee update: got %v, want ErrOwnerOnly", err)
	}
	if err := l.UpdateProtocolFee(owner, 1500); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("fee 1500: got %v, want ErrInvalidAmount", err)
	}
	if err := l.UpdateProtocolFee(owner, 250); err != nil {
		t.Fatalf("fee update: %v", err)
	}

	if err := l.UpdateRebalanceThreshold(owner, 2500); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("threshold 2500: got %v, want ErrInvalidAmount", err)
	}
	if err := l.UpdateRebalanceThreshold(owner, 1000); err != nil {
		t.Fatalf("threshold update: %v", err)
	}

	cfg := l.Config()
	if cfg.ProtocolFeeBps != 250 || cfg.RebalanceThresholdBps != 1000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestUpdateAssetPrice(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, "SP1.oracle"); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	if err := l.AddFundAsset(owner, fundID, 1, 5000); err != nil {
		t.Fatalf("add fund asset: %v", err)
	}

	if err := l.UpdateAssetPrice(walletA, fundID, 1, 150); !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("stranger price update: got %v, want ErrUnauthorized", err)
	}
	if err := l.UpdateAssetPrice(owner, fundID, 1, 0); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("zero price: got %v, want ErrInvalidAmount", err)
	}
	if err := l.UpdateAssetPrice(owner, fundID, 2, 150); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("missing allocation: got %v, want ErrNotFound", err)
	}
	if err := l.UpdateAssetPrice(owner, fundID, 1, 150); err != nil {
		t.Fatalf("price update: %v", err)
	}

	a, _ := l.GetFundAsset(fundID, 1)
	if a.LastPrice != 150 {
		t.Fatalf("last price %d, want 150", a.LastPrice)
	}
}

func TestGetUserValue(t *testing.T) {
	l, _, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	if v, err := l.GetUserValue(fundID, walletA); err != nil || v != 0 {
		t.Fatalf("empty fund: got %d, %v", v, err)
	}

	if _, err := l.Deposit(walletA, fundID, 900); err != nil {
		t.Fatalf("deposit A: %v", err)
	}
	if _, err := l.Deposit(walletB, fundID, 100); err != nil {
		t.Fatalf("deposit B: %v", err)
	}

	va, _ := l.GetUserValue(fundID, walletA)
	vb, _ := l.GetUserValue(fundID, walletB)
	if va != 900 || vb != 100 {
		t.Fatalf("got values %d/%d, want 900/100", va, vb)
	}
}

func TestRegisterAssetValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if err := l.RegisterAsset(walletA, 1, "SP1.token-a", "TKA", 6, ""); !errors.Is(err, engine.ErrOwnerOnly) {
		t.Fatalf("stranger register: got %v, want ErrOwnerOnly", err)
	}
	if err := l.RegisterAsset(owner, 1, "", "TKA", 6, ""); !errors.Is(err, engine.ErrInvalidToken) {
		t.Fatalf("empty token ref: got %v, want ErrInvalidToken", err)
	}
	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	a, err := l.GetAssetInfo(1)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if !a.Active || a.Symbol != "TKA" || a.Decimals != 6 {
		t.Fatalf("unexpected asset: %+v", a)
	}

	// Re-registration overwrites.
	if err := l.RegisterAsset(owner, 1, "SP1.token-a-v2", "TKA2", 8, ""); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	a, _ = l.GetAssetInfo(1)
	if a.TokenRef != "SP1.token-a-v2" || a.Decimals != 8 {
		t.Fatalf("overwrite failed: %+v", a)
	}
}

func TestCheckRebalanceNeeded(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)

	need, err := l.CheckRebalanceNeeded(fundID)
	if err != nil || need {
		t.Fatalf("fresh fund: got %v, %v", need, err)
	}
	clock.H += 144
	need, _ = l.CheckRebalanceNeeded(fundID)
	if !need {
		t.Fatal("interval elapsed but rebalance not flagged")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 200)
	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, ""); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	if err := l.AddFundAsset(owner, fundID, 1, 6000); err != nil {
		t.Fatalf("add fund asset: %v", err)
	}
	if _, err := l.Deposit(walletA, fundID, 12345); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	snap := l.CreateSnapshotState()

	restored := engine.NewLedger(owner, engine.NewVaultCustodian(), engine.ThresholdStrategy{}, clock, nil, nil, nil)
	restored.RestoreFromSnapshot(snap)

	f, err := restored.GetFund(fundID)
	if err != nil {
		t.Fatalf("get fund after restore: %v", err)
	}
	if f.TotalShares != 12345 || f.TotalValue != 12345 || f.TargetWeightSumBps != 6000 {
		t.Fatalf("restored fund mismatch: %+v", f)
	}
	pos, _ := restored.GetUserPosition(fundID, walletA)
	if pos.Shares != 12345 {
		t.Fatalf("restored position mismatch: %+v", pos)
	}
	if restored.Sequence() != l.Sequence() {
		t.Fatalf("sequence %d, want %d", restored.Sequence(), l.Sequence())
	}

	// New funds continue past the restored id space.
	next, err := restored.CreateFund(owner, "Second", "SCD", 100)
	if err != nil {
		t.Fatalf("create after restore: %v", err)
	}
	if next != fundID+1 {
		t.Fatalf("next id %d, want %d", next, fundID+1)
	}
}

func TestScanRebalanceSignals(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	fundID := mustCreateFund(t, l, 100)
	if err := l.RegisterAsset(owner, 1, "SP1.token-a", "TKA", 6, ""); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	if err := l.AddFundAsset(owner, fundID, 1, 5000); err != nil {
		t.Fatalf("add fund asset: %v", err)
	}

	if sigs := l.ScanRebalanceSignals(); len(sigs) != 0 {
		t.Fatalf("signals before interval: %+v", sigs)
	}

	clock.H += 144
	sigs := l.ScanRebalanceSignals()
	if len(sigs) != 1 || sigs[0].FundID != fundID || sigs[0].MaxDeviationBps != 5000 {
		t.Fatalf("unexpected signals: %+v", sigs)
	}
}

func TestCommitOutputsFlow(t *testing.T) {
	persist := make(chan engine.Output, 16)
	publish := make(chan engine.Output, 16)
	clock := &engine.ManualClock{H: 100}
	l := engine.NewLedger(owner, engine.NewVaultCustodian(), engine.ThresholdStrategy{}, clock, nil, persist, publish)

	fundID := mustCreateFund(t, l, 100)
	if _, err := l.Deposit(walletA, fundID, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if len(persist) != 2 || len(publish) != 2 {
		t.Fatalf("persist=%d publish=%d outputs, want 2/2", len(persist), len(publish))
	}

	created := <-persist
	if created.Envelope.Kind != event.KindFundCreated || created.Envelope.Sequence != 1 {
		t.Fatalf("unexpected first output: %+v", created.Envelope)
	}
	minted := <-persist
	if minted.Envelope.Kind != event.KindSharesMinted || len(minted.Journals) != 1 {
		t.Fatalf("unexpected second output: %+v", minted)
	}
	j := minted.Journals[0]
	if j.Type != event.JournalSharesMinted || j.ShareDelta != 1000 || j.ValueDelta != 1000 {
		t.Fatalf("unexpected journal: %+v", j)
	}
}
