package jobs

import (
	"context"
	"fmt"
	"time"

	"referral_platform/internal/model"
	"referral_platform/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultSchedule  = "@every 5m"
	defaultLookback  = 72 * time.Hour
	defaultBatchSize = 200
)

type ReconcilerConfig struct {
	Enabled   bool          `json:"enabled"`
	Schedule  string        `json:"schedule"`
	Lookback  time.Duration `json:"lookback"`
	BatchSize int           `json:"batchSize"`
}

type PendingSettlementLister interface {
	ListPendingSettlements(ctx context.Context, since time.Time, limit int) ([]*model.PendingSettlement, error)
}

type ReconcileStats struct {
	Scanned  int
	Credited int
	Failed   int
}

// Reconciler periodically re-drives settlement for recently completed payments
// that are missing commission levels, covering webhook deliveries that failed
// part way through.
type Reconciler struct {
	repo    PendingSettlementLister
	settler service.SettlementServiceI
	cfg     ReconcilerConfig
	cron    *cron.Cron
	log     *zap.Logger
	now     func() time.Time
}

func NewReconciler(repo PendingSettlementLister, settler service.SettlementServiceI, cfg ReconcilerConfig, log *zap.Logger) *Reconciler {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Reconciler{
		repo:    repo,
		settler: settler,
		cfg:     cfg,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) Start() error {
	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		stats, err := r.RunOnce(context.Background())
		if err != nil {
			r.log.Error("reconciliation run failed", zap.Error(err))
			return
		}
		r.log.Info("reconciliation run finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("credited", stats.Credited),
			zap.Int("failed", stats.Failed))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciler %q: %w", r.cfg.Schedule, err)
	}

	r.cron.Start()
	r.log.Info("reconciler scheduled", zap.String("schedule", r.cfg.Schedule))
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	pending, err := r.repo.ListPendingSettlements(ctx, r.now().Add(-r.cfg.Lookback), r.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list pending settlements: %w", err)
	}

	for _, p := range pending {
		stats.Scanned++

		result, err := r.settler.Settle(ctx, p.PaymentID)
		if err != nil {
			stats.Failed++
			r.log.Warn("settlement retry failed",
				zap.String("payment_id", p.PaymentID),
				zap.Ints("settled_levels", p.SettledLevels),
				zap.Error(err))
			continue
		}

		stats.Credited += len(result.Credited)
		if !result.Noop() {
			r.log.Info("settlement completed by reconciler",
				zap.String("payment_id", p.PaymentID),
				zap.Int("credited_levels", len(result.Credited)))
		}
	}

	return stats, nil
}
