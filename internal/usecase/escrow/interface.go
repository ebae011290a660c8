package escrow

import (
	"context"

	"payment-service/internal/domain"
)

// Store is the transactional escrow persistence the coordinator runs on.
type Store interface {
	HoldForOrder(ctx context.Context, order *domain.Order) (*domain.Transaction, error)
	ReleaseOnCompletion(ctx context.Context, order *domain.Order) (*domain.Transaction, *domain.Transaction, error)
	RefundOnCancellation(ctx context.Context, order *domain.Order) (*domain.Transaction, error)
}

type Notifier interface {
	PaymentUpdate(userID int64, message string, tx *domain.Transaction)
}
