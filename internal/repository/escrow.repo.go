package repository

import (
	"context"
	"encoding/json"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EscrowRepository executes the order-escrow movements. Every operation is
// one DB transaction: balances of both parties and the ledger rows involved
// either all move or none do. Lock order is ledger row first, then wallet
// rows ascending by user id, matching Finalize's discipline.
type EscrowRepository struct {
	db *pgxpool.Pool
}

func NewEscrowRepository(db *pgxpool.Pool) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// HoldForOrder moves order.Price from the buyer's available balance into
// hold and writes the pending order_paid ledger row. The (order_id, tx_type)
// unique index makes a second accept of the same order a no-op returning
// the existing hold.
func (r *EscrowRepository) HoldForOrder(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	if err := ensureWalletTx(ctx, dbtx, order.BuyerID); err != nil {
		return nil, err
	}
	wallet, err := getWalletForUpdateTx(ctx, dbtx, order.BuyerID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(order.Price) {
		return nil, xerrors.ErrInsufficientFunds
	}

	if _, err := applyDeltaTx(ctx, dbtx, order.BuyerID, domain.BalanceDelta{
		Available: order.Price.Neg(),
		OnHold:    order.Price,
	}); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal([]domain.ProviderEvent{{Source: "order_accepted", ReceivedAt: time.Now().UTC()}})
	query := `INSERT INTO transactions
		(user_id, tx_type, amount, status, order_id, applied, metadata)
		VALUES ($1, 'order_paid', $2, 'pending', $3, TRUE, $4::jsonb)
		RETURNING ` + txColumns
	hold, err := scanTransaction(dbtx.QueryRow(ctx, query, order.BuyerID, order.Price, order.ID, meta))
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return r.findOrderTx(ctx, order.ID, domain.TxTypeOrderPaid)
		}
		return nil, err
	}

	if err := insertEntryTx(ctx, dbtx, hold); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseOnCompletion clears the buyer's hold, completes the order_paid
// row, credits the seller and writes the seller's order_earned row, all
// atomically. Calling it again for the same order is a no-op.
func (r *EscrowRepository) ReleaseOnCompletion(ctx context.Context, order *domain.Order) (*domain.Transaction, *domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer dbtx.Rollback(ctx)

	hold, err := r.lockOrderTx(ctx, dbtx, order.ID, domain.TxTypeOrderPaid)
	if err != nil {
		return nil, nil, err
	}
	if hold.Status != domain.TxStatusPending {
		if hold.Status == domain.TxStatusCompleted {
			earned, _ := r.findOrderTx(ctx, order.ID, domain.TxTypeOrderEarned)
			return hold, earned, nil // already released
		}
		return nil, nil, xerrors.ErrOrderNotHeld
	}

	if err := ensureWalletTx(ctx, dbtx, order.SellerID); err != nil {
		return nil, nil, err
	}
	// lock both wallets in user-id order to keep lock acquisition stable
	first, second := order.BuyerID, order.SellerID
	if second < first {
		first, second = second, first
	}
	if _, err := getWalletForUpdateTx(ctx, dbtx, first); err != nil {
		return nil, nil, err
	}
	if first != second {
		if _, err := getWalletForUpdateTx(ctx, dbtx, second); err != nil {
			return nil, nil, err
		}
	}

	if _, err := applyDeltaTx(ctx, dbtx, order.BuyerID, domain.BalanceDelta{OnHold: hold.Amount.Neg()}); err != nil {
		return nil, nil, err
	}
	if _, err := applyDeltaTx(ctx, dbtx, order.SellerID, domain.BalanceDelta{Available: hold.Amount}); err != nil {
		return nil, nil, err
	}

	ev, _ := json.Marshal(domain.ProviderEvent{Source: "order_completed", ReceivedAt: time.Now().UTC()})
	update := `UPDATE transactions
			   SET status = 'completed', metadata = metadata || $1::jsonb,
			       updated_at = NOW(), completed_at = NOW()
			   WHERE id = $2
			   RETURNING ` + txColumns
	released, err := scanTransaction(dbtx.QueryRow(ctx, update, ev, hold.ID))
	if err != nil {
		return nil, nil, err
	}

	meta, _ := json.Marshal([]domain.ProviderEvent{{Source: "order_completed", ReceivedAt: time.Now().UTC()}})
	insert := `INSERT INTO transactions
		(user_id, tx_type, amount, status, order_id, applied, metadata, completed_at)
		VALUES ($1, 'order_earned', $2, 'completed', $3, TRUE, $4::jsonb, NOW())
		RETURNING ` + txColumns
	earned, err := scanTransaction(dbtx.QueryRow(ctx, insert, order.SellerID, hold.Amount, order.ID, meta))
	if err != nil {
		return nil, nil, err
	}

	if err := updateEntryStatusByOrderTx(ctx, dbtx, order.ID, domain.TxTypeOrderPaid, domain.TxStatusCompleted); err != nil {
		return nil, nil, err
	}
	if err := insertEntryTx(ctx, dbtx, earned); err != nil {
		return nil, nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return released, earned, nil
}

// RefundOnCancellation moves the held amount back to the buyer's available
// balance and marks the hold cancelled. Cancelling an order that never
// reached a hold is a no-op returning nil.
func (r *EscrowRepository) RefundOnCancellation(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	hold, err := r.lockOrderTx(ctx, dbtx, order.ID, domain.TxTypeOrderPaid)
	if err != nil {
		if err == xerrors.ErrTransactionNotFound {
			return nil, nil // cancelled before any hold was placed
		}
		return nil, err
	}
	if hold.Status != domain.TxStatusPending {
		return hold, nil // already released or cancelled
	}

	if _, err := getWalletForUpdateTx(ctx, dbtx, order.BuyerID); err != nil {
		return nil, err
	}
	if _, err := applyDeltaTx(ctx, dbtx, order.BuyerID, domain.BalanceDelta{
		Available: hold.Amount,
		OnHold:    hold.Amount.Neg(),
	}); err != nil {
		return nil, err
	}

	ev, _ := json.Marshal(domain.ProviderEvent{Source: "order_cancelled", ReceivedAt: time.Now().UTC()})
	update := `UPDATE transactions
			   SET status = 'cancelled', applied = FALSE,
			       metadata = metadata || $1::jsonb, updated_at = NOW()
			   WHERE id = $2
			   RETURNING ` + txColumns
	cancelled, err := scanTransaction(dbtx.QueryRow(ctx, update, ev, hold.ID))
	if err != nil {
		return nil, err
	}

	if err := updateEntryStatusByOrderTx(ctx, dbtx, order.ID, domain.TxTypeOrderPaid, domain.TxStatusCancelled); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *EscrowRepository) lockOrderTx(ctx context.Context, dbtx pgx.Tx, orderID int64, txType domain.TxType) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
			  WHERE order_id = $1 AND tx_type = $2 FOR UPDATE`
	return scanTransaction(dbtx.QueryRow(ctx, query, orderID, txType))
}

func (r *EscrowRepository) findOrderTx(ctx context.Context, orderID int64, txType domain.TxType) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
			  WHERE order_id = $1 AND tx_type = $2`
	return scanTransaction(r.db.QueryRow(ctx, query, orderID, txType))
}
