package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txColumns = `id, user_id, tx_type, amount, status,
	gateway_deposit_id, gateway_payout_id, gateway_refund_id, refunded_deposit_id,
	order_id, applied, metadata, created_at, updated_at, completed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status,
		&t.GatewayDepositID, &t.GatewayPayoutID, &t.GatewayRefundID, &t.RefundedDepositID,
		&t.OrderID, &t.Applied, &t.Metadata, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreatePending inserts a new pending ledger row plus its wallet cache
// entry in one DB transaction, creating the wallet lazily. A correlation id
// collision returns the existing row with ErrDuplicateCorrelation; callers
// treat that as success.
func (r *TransactionRepository) CreatePending(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	t.Status = domain.TxStatusPending
	t.Applied = false
	if t.Metadata == nil {
		t.Metadata = []domain.ProviderEvent{}
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return nil, err
	}

	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	if err := ensureWalletTx(ctx, dbtx, t.UserID); err != nil {
		return nil, err
	}

	query := `INSERT INTO transactions
		(user_id, tx_type, amount, status,
		 gateway_deposit_id, gateway_payout_id, gateway_refund_id, refunded_deposit_id,
		 order_id, applied, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		RETURNING ` + txColumns
	created, err := scanTransaction(dbtx.QueryRow(ctx, query,
		t.UserID, t.Type, t.Amount, t.Status,
		t.GatewayDepositID, t.GatewayPayoutID, t.GatewayRefundID, t.RefundedDepositID,
		t.OrderID, t.Applied, meta))
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			existing, findErr := r.FindByCorrelationID(ctx, t.CorrelationID(), domain.OpTypeFor(t.Type))
			if findErr != nil {
				return nil, findErr
			}
			return existing, xerrors.ErrDuplicateCorrelation
		}
		return nil, err
	}

	if err := insertEntryTx(ctx, dbtx, created); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *TransactionRepository) FindByCorrelationID(ctx context.Context, ref string, op domain.OpType) (*domain.Transaction, error) {
	col, err := txCorrelationColumn(op)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` + col + ` = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, ref))
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

// ListPendingPayouts returns payouts awaiting a terminal gateway status,
// oldest first. Fed to the reconciliation poller.
func (r *TransactionRepository) ListPendingPayouts(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
			  WHERE tx_type = 'withdrawal' AND status = 'pending'
			  ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Finalize is the single choke point every status-mutating path goes
// through: it locks the ledger row, plans the transition once, applies the
// balance delta with the same lock held, flips the applied flag and appends
// the provider event. A webhook and a poller tick racing on the same
// correlation id serialize on the row lock; the loser sees a terminal
// status and no-ops. The returned bool reports whether state changed.
func (r *TransactionRepository) Finalize(ctx context.Context, ref string, op domain.OpType, target domain.TxStatus, event domain.ProviderEvent) (*domain.Transaction, bool, error) {
	col, err := txCorrelationColumn(op)
	if err != nil {
		return nil, false, err
	}

	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer dbtx.Rollback(ctx)

	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` + col + ` = $1 FOR UPDATE`
	current, err := scanTransaction(dbtx.QueryRow(ctx, query, ref))
	if err != nil {
		return nil, false, err
	}

	plan, err := domain.PlanTransition(current, target)
	if err != nil {
		return nil, false, err
	}
	if plan.NoOp {
		return current, false, nil
	}

	if !plan.Delta.IsZero() {
		if _, err := getWalletForUpdateTx(ctx, dbtx, current.UserID); err != nil {
			return nil, false, err
		}
		if _, err := applyDeltaTx(ctx, dbtx, current.UserID, plan.Delta); err != nil {
			return nil, false, fmt.Errorf("apply balance delta for %s: %w", ref, err)
		}
	}

	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	ev, err := json.Marshal(event)
	if err != nil {
		return nil, false, err
	}

	update := `UPDATE transactions
			   SET status = $1,
			       applied = $2,
			       metadata = metadata || $3::jsonb,
			       updated_at = NOW(),
			       completed_at = CASE WHEN $1 IN ('completed','failed') THEN NOW() ELSE completed_at END
			   WHERE id = $4
			   RETURNING ` + txColumns
	updated, err := scanTransaction(dbtx.QueryRow(ctx, update, plan.NewStatus, plan.Applied, ev, current.ID))
	if err != nil {
		return nil, false, err
	}

	if err := updateEntryStatusByRefTx(ctx, dbtx, op, ref, plan.NewStatus); err != nil {
		return nil, false, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// RecordAudit writes a terminal ledger row that never touches balances.
// Used when the provider reports an operation this system has no record of.
func (r *TransactionRepository) RecordAudit(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if t.Metadata == nil {
		t.Metadata = []domain.ProviderEvent{}
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return nil, err
	}
	query := `INSERT INTO transactions
		(user_id, tx_type, amount, status,
		 gateway_deposit_id, gateway_payout_id, gateway_refund_id,
		 applied, metadata, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8::jsonb, NOW())
		RETURNING ` + txColumns
	created, err := scanTransaction(r.db.QueryRow(ctx, query,
		t.UserID, t.Type, t.Amount, t.Status,
		t.GatewayDepositID, t.GatewayPayoutID, t.GatewayRefundID, meta))
	if err != nil && xerrors.IsUniqueViolation(err) {
		return r.FindByCorrelationID(ctx, t.CorrelationID(), domain.OpTypeFor(t.Type))
	}
	return created, err
}

func txCorrelationColumn(op domain.OpType) (string, error) {
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
