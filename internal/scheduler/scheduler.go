package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"FundLedger/internal/engine"
	"FundLedger/internal/observability"
)

// Scheduler runs the periodic background jobs: the rebalance monitor
// that scans funds for allocation drift, and the snapshot job that
// checkpoints engine state for warm restart.
type Scheduler struct {
	cron     *cron.Cron
	ledger   *engine.Ledger
	snapshot func(ctx context.Context) error
	logger   zerolog.Logger
}

// New wires the jobs onto their cron specs. snapshotFn may be nil
// when the process runs without a durable store.
func New(ledger *engine.Ledger, snapshotFn func(ctx context.Context) error, rebalanceSpec, snapshotSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		ledger:   ledger,
		snapshot: snapshotFn,
		logger:   observability.NewLogger("scheduler"),
	}

	if _, err := s.cron.AddFunc(rebalanceSpec, s.runRebalanceScan); err != nil {
		return nil, err
	}
	if snapshotFn != nil {
		if _, err := s.cron.AddFunc(snapshotSpec, s.runSnapshot); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runRebalanceScan() {
	signals := s.ledger.ScanRebalanceSignals()
	for _, sig := range signals {
		s.logger.Info().
			Int64("fund_id", sig.FundID).
			Int64("max_deviation_bps", sig.MaxDeviationBps).
			Int64("height", sig.Height).
			Msg("rebalance drift signal")
	}
}

func (s *Scheduler) runSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.snapshot(ctx); err != nil {
		s.logger.Error().Err(err).Msg("periodic snapshot failed")
		return
	}
	s.logger.Info().Int64("sequence", s.ledger.Sequence()).Msg("periodic snapshot written")
}
