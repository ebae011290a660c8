package recon

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/provider/pawapay"
	"payment-service/internal/xerrors"

	"go.uber.org/zap"
)

// Ledger is the slice of the ledger usecase the poller drives.
type Ledger interface {
	PendingPayouts(ctx context.Context) ([]*domain.Transaction, error)
	ApplyProviderStatus(ctx context.Context, ref string, op domain.OpType, providerStatus, failureReason, source string) (*domain.Transaction, bool, error)
}

type StatusFetcher interface {
	GetStatus(ctx context.Context, externalID string, op domain.OpType) (*pawapay.StatusResult, error)
}

// Poller periodically sweeps pending payouts and asks the gateway for their
// true status. It is the safety net for lost webhooks: a payout must never
// stay pending forever. Runs as a singleton loop; an in-flight sweep is
// never overlapped by the next tick.
type Poller struct {
	ledger   Ledger
	gateway  StatusFetcher
	interval time.Duration
	logger   *zap.Logger
	running  atomic.Bool
}

func New(ledger Ledger, gateway StatusFetcher, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{ledger: ledger, gateway: gateway, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("reconciliation poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("reconciliation poller stopped")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep reconciles every pending payout once. A failure on one item never
// stops the rest of the sweep. Concurrent calls collapse to one.
func (p *Poller) Sweep(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("sweep already in flight, skipping tick")
		return
	}
	defer p.running.Store(false)

	pending, err := p.ledger.PendingPayouts(ctx)
	if err != nil {
		p.logger.Error("failed to list pending payouts", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	p.logger.Info("reconciling pending payouts", zap.Int("count", len(pending)))
	for _, tx := range pending {
		if ctx.Err() != nil {
			return
		}
		p.reconcileOne(ctx, tx)
	}
}

func (p *Poller) reconcileOne(ctx context.Context, tx *domain.Transaction) {
	ref := tx.CorrelationID()
	if ref == "" || tx.UserID == 0 {
		// audit rows and malformed rows are not reconcilable
		p.logger.Warn("pending payout without owner or correlation id, skipping",
			zap.Int64("tx_id", tx.ID))
		return
	}

	res, err := p.gateway.GetStatus(ctx, ref, domain.OpPayout)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// the gateway never saw this payout; the create call never landed
			p.logger.Warn("gateway has no record of payout, marking failed",
				zap.String("correlation_id", ref))
			if _, _, ferr := p.ledger.ApplyProviderStatus(ctx, ref, domain.OpPayout, "FAILED", "unknown to gateway", "reconciler"); ferr != nil {
				p.logger.Error("failed to finalize unknown payout", zap.String("correlation_id", ref), zap.Error(ferr))
			}
			return
		}
		p.logger.Warn("status fetch failed, will retry next sweep",
			zap.String("correlation_id", ref),
			zap.Error(err))
		return
	}

	if _, _, err := p.ledger.ApplyProviderStatus(ctx, ref, domain.OpPayout, res.ProviderStatus, res.FailureReason, "reconciler"); err != nil {
		p.logger.Error("failed to apply reconciled status",
			zap.String("correlation_id", ref),
			zap.String("provider_status", res.ProviderStatus),
			zap.Error(err))
	}
}
