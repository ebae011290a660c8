package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"payment-service/internal/middleware"
	"payment-service/internal/response"
	"payment-service/internal/usecase/payment"
	"payment-service/internal/usecase/wallet"
	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments *payment.Service
	wallets  *wallet.Service
	logger   *zap.Logger
}

func NewPaymentHandler(payments *payment.Service, wallets *wallet.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, wallets: wallets, logger: logger}
}

type paymentRequest struct {
	Amount        string `json:"amount"`
	PhoneNumber   string `json:"phone_number"`
	Correspondent string `json:"correspondent"`
	Currency      string `json:"currency"`
	Country       string `json:"country"`
}

func (r paymentRequest) toInput() (payment.DepositInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return payment.DepositInput{}, xerrors.NewValidation("amount", "must be a decimal string")
	}
	return payment.DepositInput{
		Amount:        amount,
		PhoneNumber:   r.PhoneNumber,
		Correspondent: r.Correspondent,
		Currency:      r.Currency,
		Country:       r.Country,
	}, nil
}

// HandleDeposit starts a mobile-money collection into the caller's wallet.
// The response is always a pending (or already failed) transaction; the
// wallet is credited only once the provider confirms.
func (h *PaymentHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tx, err := h.payments.Deposit(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusAccepted, tx)
}

// HandleWithdraw starts a mobile-money payout from the caller's wallet. The
// balance is checked up front but only debited once the provider confirms.
func (h *PaymentHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tx, err := h.payments.Payout(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusAccepted, tx)
}

type refundRequest struct {
	DepositID string `json:"deposit_id"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

// HandleRefund starts a gateway refund of a completed deposit. Internal
// surface: driven by support tooling and the dispute flow, not end users.
func (h *PaymentHandler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.DepositID == "" {
		writeError(w, h.logger, xerrors.NewValidation("deposit_id", "is required"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, h.logger, xerrors.NewValidation("amount", "must be a decimal string"))
		return
	}

	tx, err := h.payments.Refund(r.Context(), req.DepositID, amount, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusAccepted, tx)
}

// HandleWallet returns the caller's balances plus recent wallet entries.
func (h *PaymentHandler) HandleWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.wallets.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

// HandleTransactions lists the caller's ledger history, newest first.
func (h *PaymentHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.wallets.Transactions(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, txs)
}
