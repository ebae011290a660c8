package payment

import (
	"context"
	"errors"
	"fmt"

	"payment-service/internal/domain"
	"payment-service/internal/provider/pawapay"
	"payment-service/internal/xerrors"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service runs deposit/payout/refund initiation. Requests come back as
// "accepted, pending confirmation": the true outcome arrives later via
// webhook or the reconciliation poller. A gateway timeout on create is an
// unknown outcome, so the local transaction stays pending; it is never
// assumed failed.
type Service struct {
	gateway Gateway
	ledger  Ledger
	wallets Wallets
	logger  *zap.Logger
}

func New(gateway Gateway, ledger Ledger, wallets Wallets, logger *zap.Logger) *Service {
	return &Service{gateway: gateway, ledger: ledger, wallets: wallets, logger: logger}
}

type DepositInput struct {
	Amount        decimal.Decimal
	PhoneNumber   string
	Correspondent string
	Currency      string
	Country       string
}

type PayoutInput = DepositInput

func (s *Service) Deposit(ctx context.Context, userID int64, in DepositInput) (*domain.Transaction, error) {
	depositID := uuid.NewString()
	params := pawapay.DepositParams{
		DepositID:     depositID,
		Amount:        in.Amount,
		PhoneNumber:   in.PhoneNumber,
		Correspondent: in.Correspondent,
		Currency:      in.Currency,
		Country:       in.Country,
		Description:   newRequestRef("DEP"),
		Metadata: []pawapay.MetadataField{
			{FieldName: "userId", FieldValue: fmt.Sprintf("%d", userID), IsPII: true},
		},
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.ledger.CreatePending(ctx, &domain.Transaction{
		UserID:           userID,
		Type:             domain.TxTypeDeposit,
		Amount:           in.Amount,
		GatewayDepositID: &depositID,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.CreateDeposit(ctx, params)
	return s.afterCreate(ctx, tx, domain.OpDeposit, depositID, res, err)
}

func (s *Service) Payout(ctx context.Context, userID int64, in PayoutInput) (*domain.Transaction, error) {
	payoutID := uuid.NewString()
	params := pawapay.PayoutParams{
		PayoutID:      payoutID,
		Amount:        in.Amount,
		PhoneNumber:   in.PhoneNumber,
		Correspondent: in.Correspondent,
		Currency:      in.Currency,
		Country:       in.Country,
		Description:   newRequestRef("WDR"),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// intent pre-check only; the balance is debited at finalize(completed)
	// and the store's conditional update is the final guard
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Balance.LessThan(in.Amount) {
		return nil, xerrors.ErrInsufficientFunds
	}

	tx, err := s.ledger.CreatePending(ctx, &domain.Transaction{
		UserID:          userID,
		Type:            domain.TxTypeWithdrawal,
		Amount:          in.Amount,
		GatewayPayoutID: &payoutID,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.CreatePayout(ctx, params)
	return s.afterCreate(ctx, tx, domain.OpPayout, payoutID, res, err)
}

// Refund initiates a gateway refund of a completed deposit back to the
// payer's mobile wallet.
func (s *Service) Refund(ctx context.Context, depositRef string, amount decimal.Decimal, reason string) (*domain.Transaction, error) {
	deposit, err := s.ledger.FindByCorrelationID(ctx, depositRef, domain.OpDeposit)
	if err != nil {
		return nil, err
	}
	if deposit.Status != domain.TxStatusCompleted {
		return nil, xerrors.NewValidation("depositId", "only completed deposits can be refunded")
	}
	if amount.GreaterThan(deposit.Amount) {
		return nil, xerrors.NewValidation("amount", "exceeds the original deposit amount")
	}

	refundID := uuid.NewString()
	tx, err := s.ledger.CreatePending(ctx, &domain.Transaction{
		UserID:            deposit.UserID,
		Type:              domain.TxTypeRefund,
		Amount:            amount,
		GatewayRefundID:   &refundID,
		RefundedDepositID: &depositRef,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.CreateRefund(ctx, pawapay.RefundParams{
		RefundID:  refundID,
		DepositID: depositRef,
		Amount:    amount,
		Reason:    reason,
	})
	return s.afterCreate(ctx, tx, domain.OpRefund, refundID, res, err)
}

// afterCreate resolves the three possible outcomes of a gateway create
// call: accepted (stay pending), explicitly rejected (finalize failed now),
// or unreachable/timeout (unknown outcome, stay pending for reconciliation).
func (s *Service) afterCreate(ctx context.Context, tx *domain.Transaction, op domain.OpType, ref string, res *pawapay.CreateResult, err error) (*domain.Transaction, error) {
	if err != nil {
		if errors.Is(err, xerrors.ErrGatewayUnavailable) {
			s.logger.Warn("gateway unreachable on create, leaving transaction pending",
				zap.String("correlation_id", ref),
				zap.String("op_type", string(op)),
				zap.Error(err))
			return tx, nil
		}
		return nil, err
	}

	if domain.MapProviderStatus(res.ProviderStatus) == domain.TxStatusFailed {
		finalized, _, ferr := s.ledger.ApplyProviderStatus(ctx, ref, op, res.ProviderStatus, "rejected at creation", "request")
		if ferr != nil {
			return nil, ferr
		}
		return finalized, nil
	}

	return tx, nil
}

func newRequestRef(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}
