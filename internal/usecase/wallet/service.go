package wallet

import (
	"context"

	"payment-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	wallets WalletStore
	txs     TransactionLister
	logger  *zap.Logger
}

func New(wallets WalletStore, txs TransactionLister, logger *zap.Logger) *Service {
	return &Service{wallets: wallets, txs: txs, logger: logger}
}

// Summary is the balance view returned to clients. Pending amounts are
// reported separately so unsettled funds are never mistaken for settled
// ones.
type Summary struct {
	Wallet          *domain.Wallet       `json:"wallet"`
	PendingDeposits decimal.Decimal      `json:"pending_deposits"`
	PendingPayouts  decimal.Decimal      `json:"pending_payouts"`
	Entries         []domain.WalletEntry `json:"entries"`
}

func (s *Service) Summary(ctx context.Context, userID int64) (*Summary, error) {
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.wallets.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Wallet:          w,
		PendingDeposits: decimal.Zero,
		PendingPayouts:  decimal.Zero,
		Entries:         entries,
	}
	for _, e := range entries {
		if e.TxStatus != domain.TxStatusPending {
			continue
		}
		switch e.TxType {
		case domain.TxTypeDeposit:
			out.PendingDeposits = out.PendingDeposits.Add(e.Amount)
		case domain.TxTypeWithdrawal:
			out.PendingPayouts = out.PendingPayouts.Add(e.Amount)
		}
	}
	return out, nil
}

func (s *Service) Transactions(ctx context.Context, userID int64, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.txs.ListByUserID(ctx, userID, limit, offset)
}
