package pawapay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/cenkalti/backoff/v5"
)

const statusMaxAttempts = 3

type statusResponse struct {
	DepositID     string `json:"depositId,omitempty"`
	PayoutID      string `json:"payoutId,omitempty"`
	RefundID      string `json:"refundId,omitempty"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	FailureReason *struct {
		RejectionCode    string `json:"rejectionCode"`
		RejectionMessage string `json:"rejectionMessage"`
	} `json:"failureReason,omitempty"`
}

// GetStatus queries the gateway for the current state of an operation.
// Transient gateway errors are retried a few times with exponential backoff
// before surfacing ErrGatewayUnavailable; validation-level problems are not
// retried.
func (c *Client) GetStatus(ctx context.Context, externalID string, op domain.OpType) (*StatusResult, error) {
	if externalID == "" {
		return nil, xerrors.NewValidation("externalId", "is required")
	}

	var path string
	switch op {
	case domain.OpDeposit:
		path = "/deposits/" + externalID
	case domain.OpPayout:
		path = "/payouts/" + externalID
	case domain.OpRefund:
		path = "/refunds/" + externalID
	default:
		return nil, xerrors.NewValidation("opType", "unknown operation type")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < statusMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", xerrors.ErrGatewayUnavailable, ctx.Err())
			case <-time.After(bo.NextBackOff()):
			}
		}

		// the gateway returns an array for status lookups
		var res []statusResponse
		lastErr = c.get(ctx, path, &res)
		if lastErr == nil {
			if len(res) == 0 {
				return nil, xerrors.ErrNotFound
			}
			return toStatusResult(res[0], op), nil
		}
		if !errors.Is(lastErr, xerrors.ErrGatewayUnavailable) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func toStatusResult(res statusResponse, op domain.OpType) *StatusResult {
	out := &StatusResult{
		ProviderStatus: res.Status,
		Amount:         res.Amount,
	}
	switch op {
	case domain.OpDeposit:
		out.ExternalID = res.DepositID
	case domain.OpPayout:
		out.ExternalID = res.PayoutID
	case domain.OpRefund:
		out.ExternalID = res.RefundID
	}
	if res.FailureReason != nil {
		out.FailureReason = res.FailureReason.RejectionCode
		if res.FailureReason.RejectionMessage != "" {
			out.FailureReason = res.FailureReason.RejectionCode + ": " + res.FailureReason.RejectionMessage
		}
	}
	return out
}
