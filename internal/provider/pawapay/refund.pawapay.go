package pawapay

import (
	"context"

	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
)

type RefundParams struct {
	RefundID  string
	DepositID string
	Amount    decimal.Decimal
	Reason    string
}

type refundRequest struct {
	RefundID  string          `json:"refundId"`
	DepositID string          `json:"depositId"`
	Amount    string          `json:"amount"`
	Metadata  []MetadataField `json:"metadata,omitempty"`
}

// CreateRefund returns (part of) a completed deposit to the payer.
func (c *Client) CreateRefund(ctx context.Context, p RefundParams) (*CreateResult, error) {
	if !p.Amount.IsPositive() {
		return nil, xerrors.NewValidation("amount", "must be greater than zero")
	}
	if p.DepositID == "" {
		return nil, xerrors.NewValidation("depositId", "is required")
	}

	req := refundRequest{
		RefundID:  p.RefundID,
		DepositID: p.DepositID,
		Amount:    p.Amount.String(),
	}
	if p.Reason != "" {
		req.Metadata = []MetadataField{{FieldName: "reason", FieldValue: p.Reason}}
	}

	var res createResponse
	if err := c.post(ctx, "/refunds", req, &res); err != nil {
		return nil, err
	}
	return &CreateResult{ExternalID: res.RefundID, ProviderStatus: res.Status}, nil
}
