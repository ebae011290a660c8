package handler

import (
	"encoding/json"
	"net/http"

	"payment-service/internal/domain"
	"payment-service/internal/response"
	"payment-service/internal/usecase/escrow"
	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EscrowHandler serves the internal order-lifecycle callbacks from the
// order service. These routes sit behind service auth, not user auth.
type EscrowHandler struct {
	escrow *escrow.Service
	logger *zap.Logger
}

func NewEscrowHandler(escrow *escrow.Service, logger *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrow: escrow, logger: logger}
}

type orderRequest struct {
	OrderID  int64  `json:"order_id"`
	BuyerID  int64  `json:"buyer_id"`
	SellerID int64  `json:"seller_id"`
	Price    string `json:"price"`
}

func (r orderRequest) toOrder() (*domain.Order, error) {
	if r.OrderID <= 0 {
		return nil, xerrors.NewValidation("order_id", "must be positive")
	}
	if r.BuyerID <= 0 {
		return nil, xerrors.NewValidation("buyer_id", "must be positive")
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil || price.IsNegative() {
		return nil, xerrors.NewValidation("price", "must be a non-negative decimal string")
	}
	return &domain.Order{
		ID:       r.OrderID,
		BuyerID:  r.BuyerID,
		SellerID: r.SellerID,
		Price:    price,
	}, nil
}

func (h *EscrowHandler) decode(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return nil, false
	}
	order, err := req.toOrder()
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	return order, true
}

// HandleOrderAccepted holds the order price from the buyer's balance.
func (h *EscrowHandler) HandleOrderAccepted(w http.ResponseWriter, r *http.Request) {
	order, ok := h.decode(w, r)
	if !ok {
		return
	}

	hold, err := h.escrow.OnOrderAccepted(r.Context(), order)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, hold)
}

// HandleOrderCompleted releases the held funds to the seller.
func (h *EscrowHandler) HandleOrderCompleted(w http.ResponseWriter, r *http.Request) {
	order, ok := h.decode(w, r)
	if !ok {
		return
	}
	if order.SellerID <= 0 {
		writeError(w, h.logger, xerrors.NewValidation("seller_id", "must be positive"))
		return
	}

	hold, earned, err := h.escrow.OnOrderCompleted(r.Context(), order)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"hold": hold, "earned": earned})
}

// HandleOrderCancelled returns the held funds to the buyer.
func (h *EscrowHandler) HandleOrderCancelled(w http.ResponseWriter, r *http.Request) {
	order, ok := h.decode(w, r)
	if !ok {
		return
	}

	hold, err := h.escrow.OnOrderCancelled(r.Context(), order)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, hold)
}
