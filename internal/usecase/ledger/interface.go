package ledger

import (
	"context"

	"payment-service/internal/domain"
)

// Store is the ledger persistence contract. The production implementation
// is repository.TransactionRepository; tests use an in-memory store that
// shares domain.PlanTransition so the balance-application rules exist in
// exactly one place.
type Store interface {
	CreatePending(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	FindByCorrelationID(ctx context.Context, ref string, op domain.OpType) (*domain.Transaction, error)
	Finalize(ctx context.Context, ref string, op domain.OpType, target domain.TxStatus, event domain.ProviderEvent) (*domain.Transaction, bool, error)
	RecordAudit(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	ListPendingPayouts(ctx context.Context) ([]*domain.Transaction, error)
}

// Notifier delivers fire-and-forget payment events; failures must never
// propagate into the financial transition.
type Notifier interface {
	PaymentUpdate(userID int64, message string, tx *domain.Transaction)
}
