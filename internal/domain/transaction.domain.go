package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxType string

const (
	TxTypeDeposit     TxType = "deposit"
	TxTypeWithdrawal  TxType = "withdrawal"
	TxTypeOrderPaid   TxType = "order_paid"
	TxTypeOrderEarned TxType = "order_earned"
	TxTypeRefund      TxType = "refund"
)

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusCancelled TxStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions are permitted,
// save for the completed->failed payout correction.
func (s TxStatus) IsTerminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed || s == TxStatusCancelled
}

// OpType selects which gateway correlation column identifies a transaction.
type OpType string

const (
	OpDeposit OpType = "deposit"
	OpPayout  OpType = "payout"
	OpRefund  OpType = "refund"
)

// ProviderEvent is one append-only audit record of a provider notification
// or status poll observed for a transaction.
type ProviderEvent struct {
	Source         string    `json:"source"` // "request", "webhook", "reconciler"
	ProviderStatus string    `json:"provider_status,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Transaction is the authoritative ledger entry, one per financial event.
// Immutable once terminal; Applied records that its balance effect has hit
// the wallet exactly once.
type Transaction struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Type              TxType          `json:"tx_type"`
	Amount            decimal.Decimal `json:"amount"`
	Status            TxStatus        `json:"status"`
	GatewayDepositID  *string         `json:"gateway_deposit_id,omitempty"`
	GatewayPayoutID   *string         `json:"gateway_payout_id,omitempty"`
	GatewayRefundID   *string         `json:"gateway_refund_id,omitempty"`
	RefundedDepositID *string         `json:"refunded_deposit_id,omitempty"`
	OrderID           *int64          `json:"order_id,omitempty"`
	Applied           bool            `json:"applied"`
	Metadata          []ProviderEvent `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// CorrelationID returns the external id matching the transaction's op type.
func (t *Transaction) CorrelationID() string {
	switch {
	case t.GatewayDepositID != nil:
		return *t.GatewayDepositID
	case t.GatewayPayoutID != nil:
		return *t.GatewayPayoutID
	case t.GatewayRefundID != nil:
		return *t.GatewayRefundID
	}
	return ""
}

// OpTypeFor maps a ledger transaction type to the gateway operation that
// carries its correlation id.
func OpTypeFor(t TxType) OpType {
	switch t {
	case TxTypeWithdrawal:
		return OpPayout
	case TxTypeRefund:
		return OpRefund
	default:
		return OpDeposit
	}
}
