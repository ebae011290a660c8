package domain

import (
	"github.com/shopspring/decimal"
)

// Order statuses as reported by the order service collaborator.
const (
	OrderStatusAccepted  = "accepted"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order is the slice of the order service's record the escrow coordinator
// needs. The order lifecycle itself lives outside this service.
type Order struct {
	ID       int64           `json:"id"`
	BuyerID  int64           `json:"buyer_id"`
	SellerID int64           `json:"seller_id"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"`
}
