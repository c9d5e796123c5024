package engine

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"FundLedger/internal/event"
	"FundLedger/internal/fundmath"
	"FundLedger/internal/observability"
	"FundLedger/internal/registry"
	"FundLedger/internal/state"
)

// Output is one committed operation: the event envelope plus the
// share-register journals it generated. The persist consumer receives
// every output; the publish consumer may drop under backpressure.
type Output struct {
	Envelope *event.Envelope
	Journals []event.Journal
}

// Ledger is the serialized accounting engine. Every public operation
// takes the mutex, validates, moves custody, mutates the record
// stores, and emits exactly one committed event. No operation leaves
// a partial mutation behind.
type Ledger struct {
	mu       sync.Mutex
	sequence int64

	funds       *state.FundStore
	allocations *state.AllocationTable
	positions   *state.PositionLedger
	assets      *registry.Registry
	config      *state.ProtocolConfig

	custodian Custodian
	strategy  RebalanceStrategy
	clock     BlockClock

	metrics *observability.Metrics
	logger  zerolog.Logger

	persistChan chan<- Output
	publishChan chan<- Output
}

func NewLedger(
	owner uuid.UUID,
	custodian Custodian,
	strategy RebalanceStrategy,
	clock BlockClock,
	metrics *observability.Metrics,
	persistChan, publishChan chan<- Output,
) *Ledger {
	return &Ledger{
		funds:       state.NewFundStore(),
		allocations: state.NewAllocationTable(),
		positions:   state.NewPositionLedger(),
		assets:      registry.NewRegistry(),
		config:      state.NewProtocolConfig(owner, fundmath.RebalanceInterval),
		custodian:   custodian,
		strategy:    strategy,
		clock:       clock,
		metrics:     metrics,
		logger:      observability.NewLogger("engine"),
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// Sequence returns the last committed event sequence.
func (l *Ledger) Sequence() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

// Config returns a copy of the protocol configuration.
func (l *Ledger) Config() state.ProtocolConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.config
}

// commit assigns the next sequence, builds the envelope, and hands the
// output to the persistence and publish consumers. Persist is a
// durability guarantee so the send blocks; publish is best-effort and
// drops when full. Called with the mutex held.
func (l *Ledger) commit(kind event.Kind, fundID *int64, caller uuid.UUID, payload interface{}, journals []event.Journal) *event.Envelope {
	l.sequence++
	env := &event.Envelope{
		Sequence: l.sequence,
		Kind:     kind,
		FundID:   fundID,
		Height:   l.clock.Height(),
		Caller:   caller,
		Payload:  payload,
	}
	out := Output{Envelope: env, Journals: journals}

	if l.persistChan != nil {
		select {
		case l.persistChan <- out:
		default:
			if l.metrics != nil {
				l.metrics.PersistBackpressure.Inc()
			}
			l.persistChan <- out
		}
	}

	if l.publishChan != nil {
		select {
		case l.publishChan <- out:
		default:
			if l.metrics != nil {
				l.metrics.PublishDrops.Inc()
			}
		}
	}

	if l.metrics != nil {
		l.metrics.Sequence.Set(float64(l.sequence))
		for _, j := range journals {
			l.metrics.Journals.WithLabelValues(string(j.Type)).Inc()
		}
	}
	return env
}

// applied records a successful operation's metrics.
func (l *Ledger) applied(op string, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.OpsApplied.WithLabelValues(op).Inc()
	l.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// reject records a rejection and returns the error unchanged.
func (l *Ledger) reject(op string, err error) error {
	if l.metrics != nil {
		l.metrics.OpsRejected.WithLabelValues(op, strconv.Itoa(Code(err))).Inc()
	}
	return err
}

// setFundGauges refreshes the per-fund NAV and supply gauges.
func (l *Ledger) setFundGauges(f *state.Fund) {
	if l.metrics == nil {
		return
	}
	id := strconv.FormatInt(f.ID, 10)
	l.metrics.FundNav.WithLabelValues(id).Set(float64(f.TotalValue))
	l.metrics.FundSupply.WithLabelValues(id).Set(float64(f.TotalShares))
}

// checkConservation panics when the share register disagrees with the
// fund's outstanding supply. A broken conservation law means corrupted
// state; continuing would compound the damage.
func (l *Ledger) checkConservation(f *state.Fund) {
	if f.TotalShares < 0 || f.TotalValue < 0 {
		panic(fmt.Sprintf("FATAL: fund %d negative supply or value: shares=%d value=%d",
			f.ID, f.TotalShares, f.TotalValue))
	}
	if got := l.positions.TotalShares(f.ID); got != f.TotalShares {
		panic(fmt.Sprintf("FATAL: share conservation broken for fund %d: positions=%d supply=%d",
			f.ID, got, f.TotalShares))
	}
}

// --- Read-only queries ---

// FundView is a fund record plus derived fields surfaced to readers.
type FundView struct {
	state.Fund
	TargetWeightSumBps int64
}

// GetFund returns the fund record with its allocation weight sum. The
// weight sum is informational; sums above 10000 are the operator's
// signal that targets need correcting.
func (l *Ledger) GetFund(fundID int64) (FundView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return FundView{}, fmt.Errorf("fund %d: %w", fundID, ErrNotFound)
	}
	return FundView{
		Fund:               *f,
		TargetWeightSumBps: l.allocations.TargetWeightSum(fundID),
	}, nil
}

// GetFundAsset returns one allocation record.
func (l *Ledger) GetFundAsset(fundID, assetID int64) (state.Allocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.allocations.Get(fundID, assetID)
	if a == nil {
		return state.Allocation{}, fmt.Errorf("allocation %d/%d: %w", fundID, assetID, ErrNotFound)
	}
	return *a, nil
}

// GetUserPosition returns the holder's position, zero-valued when the
// holder has never deposited.
func (l *Ledger) GetUserPosition(fundID int64, holder uuid.UUID) (state.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.funds.Get(fundID) == nil {
		return state.Position{}, fmt.Errorf("fund %d: %w", fundID, ErrNotFound)
	}
	return l.positions.Get(fundID, holder), nil
}

// GetAssetInfo returns a registered asset's metadata.
func (l *Ledger) GetAssetInfo(assetID int64) (registry.Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets.Get(assetID)
	if !ok {
		return registry.Asset{}, fmt.Errorf("asset %d: %w", assetID, ErrNotFound)
	}
	return a, nil
}

// CalculateFundNav returns the fund's net asset value in base units.
// NAV here is the stored total-value scalar; MarkToMarketNav derives
// the allocation-priced figure.
func (l *Ledger) CalculateFundNav(fundID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.navLocked(fundID)
}

func (l *Ledger) navLocked(fundID int64) (int64, error) {
	f := l.funds.Get(fundID)
	if f == nil {
		return 0, fmt.Errorf("fund %d: %w", fundID, ErrNotFound)
	}
	if !f.Active {
		return 0, fmt.Errorf("fund %d: %w", fundID, ErrFundInactive)
	}
	return f.TotalValue, nil
}

// MarkToMarketNav sums balance times last price across the fund's
// allocations with wide intermediates.
func (l *Ledger) MarkToMarketNav(fundID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return 0, fmt.Errorf("fund %d: %w", fundID, ErrNotFound)
	}
	if !f.Active {
		return 0, fmt.Errorf("fund %d: %w", fundID, ErrFundInactive)
	}

	var total int64
	for _, a := range l.allocations.ByFund(fundID) {
		v, err := fundmath.MulDivFloor(a.Balance, a.LastPrice, 1)
		if err != nil {
			return 0, fmt.Errorf("mark to market fund %d asset %d: %w", fundID, a.AssetID, ErrInvalidAmount)
		}
		total += v
	}
	return total, nil
}

// GetUserValue prices the holder's shares at current NAV.
func (l *Ledger) GetUserValue(fundID int64, holder uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nav, err := l.navLocked(fundID)
	if err != nil {
		return 0, err
	}
	f := l.funds.Get(fundID)
	if f.TotalShares == 0 {
		return 0, nil
	}
	pos := l.positions.Get(fundID, holder)
	v, err := fundmath.MulDivFloor(pos.Shares, nav, f.TotalShares)
	if err != nil {
		return 0, fmt.Errorf("user value fund %d: %w", fundID, ErrInvalidAmount)
	}
	return v, nil
}

// CheckRebalanceNeeded reports whether the rebalance interval has
// elapsed for the fund.
func (l *Ledger) CheckRebalanceNeeded(fundID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.funds.Get(fundID)
	if f == nil {
		return false, fmt.Errorf("fund %d: %w", fundID, ErrNotFound)
	}
	return l.clock.Height()-f.LastRebalance >= l.config.RebalanceInterval, nil
}

// ListFunds returns copies of every fund record ordered by id.
func (l *Ledger) ListFunds() []state.Fund {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]state.Fund, 0)
	for _, f := range l.funds.All() {
		out = append(out, *f)
	}
	return out
}

// FundAllocations returns copies of a fund's allocations ordered by
// asset id.
func (l *Ledger) FundAllocations(fundID int64) ([]state.Allocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.funds.Get(fundID) == nil {
		return nil, fmt.Errorf("fund %d: %w", fundID, ErrNotFound)
	}
	return l.allocationsLocked(fundID), nil
}

func (l *Ledger) allocationsLocked(fundID int64) []state.Allocation {
	live := l.allocations.ByFund(fundID)
	out := make([]state.Allocation, 0, len(live))
	for _, a := range live {
		out = append(out, *a)
	}
	return out
}
