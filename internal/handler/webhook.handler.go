package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"payment-service/internal/domain"
	"payment-service/internal/response"
	"payment-service/internal/usecase/ledger"
	"payment-service/internal/xerrors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrphanMarker flags cached wallet entries whose ledger counterpart cannot
// be found, so the discrepancy shows up in support tooling.
type OrphanMarker interface {
	MarkOrphanEntries(ctx context.Context, op domain.OpType, ref string) (int64, error)
}

type WebhookHandler struct {
	ledger  *ledger.Service
	orphans OrphanMarker
	logger  *zap.Logger
}

func NewWebhookHandler(ledger *ledger.Service, orphans OrphanMarker, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{ledger: ledger, orphans: orphans, logger: logger}
}

// webhookPayload covers all three callback kinds; exactly one of the id
// fields is set depending on the URL kind.
type webhookPayload struct {
	DepositID     string `json:"depositId"`
	PayoutID      string `json:"payoutId"`
	RefundID      string `json:"refundId"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	FailureReason *struct {
		RejectionCode    string `json:"rejectionCode"`
		RejectionMessage string `json:"rejectionMessage"`
	} `json:"failureReason"`
}

// HandleProviderCallback ingests a signed provider notification. Responses
// follow the provider's retry contract: 2xx acknowledges (including
// redeliveries and unknown correlation ids, which are recorded for audit),
// 4xx rejects bad payloads, 5xx asks the provider to redeliver.
func (h *WebhookHandler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	var op domain.OpType
	switch kind {
	case "deposit":
		op = domain.OpDeposit
	case "payout":
		op = domain.OpPayout
	case "refund":
		op = domain.OpRefund
	default:
		response.Error(w, http.StatusNotFound, "unknown webhook kind")
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ref := payload.correlationID(op)
	if ref == "" || payload.Status == "" {
		response.Error(w, http.StatusBadRequest, "missing correlation id or status")
		return
	}

	reason := ""
	if payload.FailureReason != nil {
		reason = payload.FailureReason.RejectionCode
		if payload.FailureReason.RejectionMessage != "" {
			reason = payload.FailureReason.RejectionMessage
		}
	}

	tx, changed, err := h.ledger.ApplyProviderStatus(r.Context(), ref, op, payload.Status, reason, "webhook")
	if err != nil {
		if errors.Is(err, xerrors.ErrTransactionNotFound) {
			h.handleUnsolicited(w, r, ref, op, payload)
			return
		}
		// 5xx so the provider retries; the transition is idempotent
		h.logger.Error("webhook processing failed",
			zap.String("correlation_id", ref),
			zap.String("kind", kind),
			zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if tx == nil {
		// non-terminal status, acknowledged but nothing to do
		response.JSON(w, http.StatusOK, map[string]any{"correlation_id": ref, "status": "pending"})
		return
	}

	h.logger.Info("webhook processed",
		zap.String("correlation_id", ref),
		zap.String("kind", kind),
		zap.String("provider_status", payload.Status),
		zap.Bool("changed", changed))
	response.JSON(w, http.StatusOK, map[string]any{"correlation_id": ref, "status": tx.Status})
}

// handleUnsolicited records a notification for a transaction this service
// never created. Acknowledged with 200 so the provider stops retrying.
func (h *WebhookHandler) handleUnsolicited(w http.ResponseWriter, r *http.Request, ref string, op domain.OpType, payload webhookPayload) {
	h.logger.Warn("webhook for unknown correlation id, recording audit entry",
		zap.String("correlation_id", ref),
		zap.String("op_type", string(op)))

	if _, err := h.ledger.RecordUnsolicited(r.Context(), ref, op, payload.Status, payload.Amount); err != nil {
		h.logger.Error("failed to record unsolicited webhook", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n, err := h.orphans.MarkOrphanEntries(r.Context(), op, ref); err != nil {
		h.logger.Error("failed to mark orphan wallet entries", zap.Error(err))
	} else if n > 0 {
		h.logger.Warn("wallet entries had no ledger transaction",
			zap.String("correlation_id", ref),
			zap.Int64("entries", n))
	}
	response.JSON(w, http.StatusOK, map[string]any{"correlation_id": ref, "recorded": true})
}

func (p webhookPayload) correlationID(op domain.OpType) string {
	switch op {
	case domain.OpPayout:
		return p.PayoutID
	case domain.OpRefund:
		return p.RefundID
	default:
		return p.DepositID
	}
}
