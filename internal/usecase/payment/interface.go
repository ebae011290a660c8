package payment

import (
	"context"

	"payment-service/internal/domain"
	"payment-service/internal/provider/pawapay"
)

// Gateway is the slice of the provider client the initiation flow needs.
type Gateway interface {
	CreateDeposit(ctx context.Context, p pawapay.DepositParams) (*pawapay.CreateResult, error)
	CreatePayout(ctx context.Context, p pawapay.PayoutParams) (*pawapay.CreateResult, error)
	CreateRefund(ctx context.Context, p pawapay.RefundParams) (*pawapay.CreateResult, error)
}

// Ledger is the slice of the ledger usecase the initiation flow needs.
type Ledger interface {
	CreatePending(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	FindByCorrelationID(ctx context.Context, ref string, op domain.OpType) (*domain.Transaction, error)
	ApplyProviderStatus(ctx context.Context, ref string, op domain.OpType, providerStatus, failureReason, source string) (*domain.Transaction, bool, error)
}

// Wallets is used only for the payout pre-check; the store remains the
// final guard at finalize time.
type Wallets interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error)
}
