package wallet

import (
	"context"

	"payment-service/internal/domain"
)

type WalletStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error)
	ListEntries(ctx context.Context, userID int64) ([]domain.WalletEntry, error)
}

type TransactionLister interface {
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*domain.Transaction, error)
}
