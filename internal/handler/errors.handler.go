package handler

import (
	"errors"
	"net/http"

	"payment-service/internal/response"
	"payment-service/internal/xerrors"

	"go.uber.org/zap"
)

// writeError maps domain errors onto the HTTP error taxonomy with stable
// machine codes. Anything unrecognised is a 500 with a generic message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var ve *xerrors.ValidationError
	switch {
	case errors.As(err, &ve):
		response.ErrorCode(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", ve.Error())
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		response.ErrorCode(w, http.StatusConflict, "INSUFFICIENT_FUNDS", "insufficient available balance")
	case errors.Is(err, xerrors.ErrWalletNotFound),
		errors.Is(err, xerrors.ErrTransactionNotFound),
		errors.Is(err, xerrors.ErrNotFound):
		response.ErrorCode(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, xerrors.ErrTransactionFinal):
		response.ErrorCode(w, http.StatusConflict, "ALREADY_FINAL", "transaction already settled")
	case errors.Is(err, xerrors.ErrGatewayUnavailable):
		response.ErrorCode(w, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "payment provider unavailable, try again later")
	case errors.Is(err, xerrors.ErrInvalidRequest):
		response.ErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request")
	default:
		logger.Error("request failed", zap.Error(err))
		response.ErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
