package pawapay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutParams struct {
	PayoutID      string
	Amount        decimal.Decimal
	PhoneNumber   string
	Correspondent string
	Currency      string
	Country       string
	Description   string
	Metadata      []MetadataField
}

type payoutRequest struct {
	PayoutID             string          `json:"payoutId"`
	Amount               string          `json:"amount"`
	Currency             string          `json:"currency"`
	Country              string          `json:"country"`
	Correspondent        string          `json:"correspondent"`
	Recipient            party           `json:"recipient"`
	CustomerTimestamp    string          `json:"customerTimestamp"`
	StatementDescription string          `json:"statementDescription,omitempty"`
	Metadata             []MetadataField `json:"metadata,omitempty"`
}

// Validate rejects malformed input before any network call is attempted.
func (p PayoutParams) Validate() error {
	return validateCommon(p.Amount, p.PhoneNumber, p.Correspondent, p.Currency, p.Country)
}

// CreatePayout submits a disbursement to the recipient's mobile wallet.
func (c *Client) CreatePayout(ctx context.Context, p PayoutParams) (*CreateResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	req := payoutRequest{
		PayoutID:             p.PayoutID,
		Amount:               p.Amount.String(),
		Currency:             p.Currency,
		Country:              p.Country,
		Correspondent:        p.Correspondent,
		Recipient:            party{Type: "MSISDN", Address: partyAddress{Value: p.PhoneNumber}},
		CustomerTimestamp:    time.Now().UTC().Format(time.RFC3339),
		StatementDescription: p.Description,
		Metadata:             p.Metadata,
	}

	var res createResponse
	if err := c.post(ctx, "/payouts", req, &res); err != nil {
		return nil, err
	}
	return &CreateResult{ExternalID: res.PayoutID, ProviderStatus: res.Status}, nil
}
