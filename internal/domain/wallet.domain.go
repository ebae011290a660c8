package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user balance record. Balance is available (settled)
// funds; OnHoldBalance is escrowed against open orders. Only the escrow
// operations move funds between the two.
type Wallet struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	OnHoldBalance decimal.Decimal `json:"on_hold_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WalletEntry is the denormalized per-wallet transaction summary kept for
// the read path. It is written only inside the same DB transaction as the
// authoritative ledger row and can always be rebuilt from it.
type WalletEntry struct {
	ID               int64           `json:"id"`
	WalletID         int64           `json:"wallet_id"`
	UserID           int64           `json:"user_id"`
	TxType           TxType          `json:"tx_type"`
	Amount           decimal.Decimal `json:"amount"`
	TxStatus         TxStatus        `json:"tx_status"`
	GatewayDepositID *string         `json:"gateway_deposit_id,omitempty"`
	GatewayPayoutID  *string         `json:"gateway_payout_id,omitempty"`
	GatewayRefundID  *string         `json:"gateway_refund_id,omitempty"`
	OrderID          *int64          `json:"order_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
