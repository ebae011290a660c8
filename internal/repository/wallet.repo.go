package repository

import (
	"context"
	"errors"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreate returns the user's wallet, creating a zero-balance one on
// first use. The unique constraint on user_id makes the create race-safe.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	query := `INSERT INTO wallets (user_id, balance, on_hold_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	var w domain.Wallet
	query := `SELECT id, user_id, balance, on_hold_balance, created_at, updated_at
			  FROM wallets WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.OnHoldBalance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListEntries returns the wallet's embedded transaction summaries, newest
// first. This is the read cache, not the ledger.
func (r *WalletRepository) ListEntries(ctx context.Context, userID int64) ([]domain.WalletEntry, error) {
	query := `SELECT id, wallet_id, user_id, tx_type, amount, tx_status,
				gateway_deposit_id, gateway_payout_id, gateway_refund_id,
				order_id, created_at, updated_at
			  FROM wallet_entries
			  WHERE user_id = $1
			  ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WalletEntry
	for rows.Next() {
		var e domain.WalletEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.UserID, &e.TxType, &e.Amount, &e.TxStatus,
			&e.GatewayDepositID, &e.GatewayPayoutID, &e.GatewayRefundID,
			&e.OrderID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkOrphanEntries flags cache entries that reference a gateway id the
// ledger knows nothing about. Best-effort repair used by the webhook
// handler for unsolicited notifications; returns rows touched.
func (r *WalletRepository) MarkOrphanEntries(ctx context.Context, op domain.OpType, ref string) (int64, error) {
	col, err := entryCorrelationColumn(op)
	if err != nil {
		return 0, err
	}
	query := `UPDATE wallet_entries SET tx_status = 'failed', updated_at = NOW()
			  WHERE ` + col + ` = $1 AND tx_status = 'pending'`
	tag, err := r.db.Exec(ctx, query, ref)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- tx-scoped helpers shared by the ledger and escrow repositories ----

func ensureWalletTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	query := `INSERT INTO wallets (user_id, balance, on_hold_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING`
	_, err := tx.Exec(ctx, query, userID)
	return err
}

func getWalletForUpdateTx(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	var w domain.Wallet
	query := `SELECT id, user_id, balance, on_hold_balance, created_at, updated_at
			  FROM wallets WHERE user_id = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, query, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.OnHoldBalance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// applyDeltaTx is the only sanctioned balance mutation. The WHERE clause is
// the final negative-balance guard: if the update would drive either column
// below zero no row matches and the caller's transaction aborts.
func applyDeltaTx(ctx context.Context, tx pgx.Tx, userID int64, d domain.BalanceDelta) (*domain.Wallet, error) {
	var w domain.Wallet
	query := `UPDATE wallets
			  SET balance = balance + $1,
			      on_hold_balance = on_hold_balance + $2,
			      updated_at = NOW()
			  WHERE user_id = $3
			    AND balance + $1 >= 0
			    AND on_hold_balance + $2 >= 0
			  RETURNING id, user_id, balance, on_hold_balance, created_at, updated_at`
	err := tx.QueryRow(ctx, query, d.Available, d.OnHold, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.OnHoldBalance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// row exists (callers lock it first), so the guard rejected the delta
		return nil, xerrors.ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func insertEntryTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO wallet_entries
		(wallet_id, user_id, tx_type, amount, tx_status,
		 gateway_deposit_id, gateway_payout_id, gateway_refund_id, order_id)
		SELECT w.id, $1, $2, $3, $4, $5, $6, $7, $8
		FROM wallets w WHERE w.user_id = $1`
	_, err := tx.Exec(ctx, query,
		t.UserID, t.Type, t.Amount, t.Status,
		t.GatewayDepositID, t.GatewayPayoutID, t.GatewayRefundID, t.OrderID)
	return err
}

func updateEntryStatusByRefTx(ctx context.Context, tx pgx.Tx, op domain.OpType, ref string, status domain.TxStatus) error {
	col, err := entryCorrelationColumn(op)
	if err != nil {
		return err
	}
	query := `UPDATE wallet_entries SET tx_status = $1, updated_at = NOW()
			  WHERE ` + col + ` = $2`
	_, err = tx.Exec(ctx, query, status, ref)
	return err
}

func updateEntryStatusByOrderTx(ctx context.Context, tx pgx.Tx, orderID int64, txType domain.TxType, status domain.TxStatus) error {
	query := `UPDATE wallet_entries SET tx_status = $1, updated_at = NOW()
			  WHERE order_id = $2 AND tx_type = $3`
	_, err := tx.Exec(ctx, query, status, orderID, txType)
	return err
}

// entryCorrelationColumn returns the wallet_entries column carrying the
// gateway reference for the given operation.
func entryCorrelationColumn(op domain.OpType) (string, error) {
	switch op {
	case domain.OpDeposit:
		return "gateway_deposit_id", nil
	case domain.OpPayout:
		return "gateway_payout_id", nil
	case domain.OpRefund:
		return "gateway_refund_id", nil
	}
	return "", xerrors.ErrInvalidRequest
}
