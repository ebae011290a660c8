package pawapay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type DepositParams struct {
	DepositID     string
	Amount        decimal.Decimal
	PhoneNumber   string
	Correspondent string
	Currency      string
	Country       string
	Description   string
	Metadata      []MetadataField
}

type depositRequest struct {
	DepositID            string          `json:"depositId"`
	Amount               string          `json:"amount"`
	Currency             string          `json:"currency"`
	Country              string          `json:"country"`
	Correspondent        string          `json:"correspondent"`
	Payer                party           `json:"payer"`
	CustomerTimestamp    string          `json:"customerTimestamp"`
	StatementDescription string          `json:"statementDescription,omitempty"`
	Metadata             []MetadataField `json:"metadata,omitempty"`
}

type party struct {
	Type    string       `json:"type"`
	Address partyAddress `json:"address"`
}

type partyAddress struct {
	Value string `json:"value"`
}

type createResponse struct {
	DepositID string `json:"depositId,omitempty"`
	PayoutID  string `json:"payoutId,omitempty"`
	RefundID  string `json:"refundId,omitempty"`
	Status    string `json:"status"`
}

// Validate rejects malformed input before any network call is attempted.
func (p DepositParams) Validate() error {
	return validateCommon(p.Amount, p.PhoneNumber, p.Correspondent, p.Currency, p.Country)
}

// CreateDeposit submits a collection from the payer's mobile wallet. The
// depositId is the caller-generated correlation id and the gateway's
// idempotency key.
func (c *Client) CreateDeposit(ctx context.Context, p DepositParams) (*CreateResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	req := depositRequest{
		DepositID:            p.DepositID,
		Amount:               p.Amount.String(),
		Currency:             p.Currency,
		Country:              p.Country,
		Correspondent:        p.Correspondent,
		Payer:                party{Type: "MSISDN", Address: partyAddress{Value: p.PhoneNumber}},
		CustomerTimestamp:    time.Now().UTC().Format(time.RFC3339),
		StatementDescription: p.Description,
		Metadata:             p.Metadata,
	}

	var res createResponse
	if err := c.post(ctx, "/deposits", req, &res); err != nil {
		return nil, err
	}
	return &CreateResult{ExternalID: res.DepositID, ProviderStatus: res.Status}, nil
}
