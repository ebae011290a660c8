package xerrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Ledger / wallet
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateCorrelation = errors.New("duplicate correlation id")
	ErrTransactionFinal     = errors.New("transaction already in terminal state")
	ErrOrderNotHeld         = errors.New("no escrow hold found for order")
)

// Gateway / webhooks
var (
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
)

// ValidationError names the offending field so clients can correct input.
// Rejected before any network or storage call is made.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Msg)
}

func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

const pgUniqueViolation = "23505"

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == pgUniqueViolation
}
