package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service owns the transaction lifecycle. Both the webhook handler and the
// reconciliation poller apply provider statuses through ApplyProviderStatus;
// there is deliberately no second code path that touches balances.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

func New(store Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// CreatePending records a new pending transaction. A duplicate correlation
// id is idempotent creation: the existing row is returned as success.
func (s *Service) CreatePending(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	created, err := s.store.CreatePending(ctx, t)
	if errors.Is(err, xerrors.ErrDuplicateCorrelation) {
		s.logger.Info("duplicate correlation id on create, returning existing transaction",
			zap.String("correlation_id", t.CorrelationID()),
			zap.String("tx_type", string(t.Type)))
		return created, nil
	}
	return created, err
}

func (s *Service) FindByCorrelationID(ctx context.Context, ref string, op domain.OpType) (*domain.Transaction, error) {
	return s.store.FindByCorrelationID(ctx, ref, op)
}

func (s *Service) PendingPayouts(ctx context.Context) ([]*domain.Transaction, error) {
	return s.store.ListPendingPayouts(ctx)
}

// ApplyProviderStatus maps a gateway-reported status and, when terminal,
// finalizes the transaction. Non-terminal statuses are logged and ignored.
// Returns the transaction and whether this call changed state.
func (s *Service) ApplyProviderStatus(ctx context.Context, ref string, op domain.OpType, providerStatus, failureReason, source string) (*domain.Transaction, bool, error) {
	target := domain.MapProviderStatus(providerStatus)
	if target == domain.TxStatusPending {
		s.logger.Info("ignoring non-terminal provider status",
			zap.String("correlation_id", ref),
			zap.String("provider_status", providerStatus),
			zap.String("source", source))
		return nil, false, nil
	}

	tx, changed, err := s.store.Finalize(ctx, ref, op, target, domain.ProviderEvent{
		Source:         source,
		ProviderStatus: providerStatus,
		FailureReason:  failureReason,
		ReceivedAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.logger.Info("transaction finalized",
			zap.String("correlation_id", ref),
			zap.String("tx_type", string(tx.Type)),
			zap.String("status", string(tx.Status)),
			zap.Bool("applied", tx.Applied),
			zap.String("source", source))
		s.notify(tx)
	} else {
		s.logger.Info("terminal status re-delivered, no-op",
			zap.String("correlation_id", ref),
			zap.String("status", string(tx.Status)),
			zap.String("source", source))
	}
	return tx, changed, nil
}

// RecordUnsolicited writes a failed audit row for a notification whose
// correlation id this system never issued. The provider gets a 200 for
// these; retrying cannot help.
func (s *Service) RecordUnsolicited(ctx context.Context, ref string, op domain.OpType, providerStatus, amount string) (*domain.Transaction, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		amt = decimal.Zero
	}

	t := &domain.Transaction{
		UserID: 0, // no owner: the operation was never requested here
		Amount: amt,
		Status: domain.TxStatusFailed,
		Metadata: []domain.ProviderEvent{{
			Source:         "webhook",
			ProviderStatus: providerStatus,
			FailureReason:  "unsolicited notification: no matching transaction",
			ReceivedAt:     time.Now().UTC(),
		}},
	}
	switch op {
	case domain.OpPayout:
		t.Type = domain.TxTypeWithdrawal
		t.GatewayPayoutID = &ref
	case domain.OpRefund:
		t.Type = domain.TxTypeRefund
		t.GatewayRefundID = &ref
	default:
		t.Type = domain.TxTypeDeposit
		t.GatewayDepositID = &ref
	}

	s.logger.Warn("recording audit transaction for unsolicited notification",
		zap.String("correlation_id", ref),
		zap.String("op_type", string(op)),
		zap.String("provider_status", providerStatus))
	return s.store.RecordAudit(ctx, t)
}

func (s *Service) notify(tx *domain.Transaction) {
	if s.notifier == nil || tx.UserID == 0 {
		return
	}
	var verb string
	switch tx.Type {
	case domain.TxTypeDeposit:
		verb = "deposit"
	case domain.TxTypeWithdrawal:
		verb = "withdrawal"
	case domain.TxTypeRefund:
		verb = "refund"
	default:
		verb = string(tx.Type)
	}
	msg := fmt.Sprintf("Your %s of %s is %s", verb, tx.Amount.StringFixed(2), tx.Status)
	s.notifier.PaymentUpdate(tx.UserID, msg, tx)
}
