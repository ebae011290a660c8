package pawapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
)

// Client is a stateless adapter over the mobile-money gateway's HTTP API.
// It validates input before any network call and maps transport failures to
// ErrGatewayUnavailable so callers know a retry may succeed.
type Client struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		APIToken:   apiToken,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// MetadataField is one gateway metadata tuple; isPII controls provider-side
// redaction.
type MetadataField struct {
	FieldName  string `json:"fieldName"`
	FieldValue string `json:"fieldValue"`
	IsPII      bool   `json:"isPII,omitempty"`
}

// CreateResult is the gateway's acknowledgement of a newly submitted
// operation.
type CreateResult struct {
	ExternalID     string `json:"externalId"`
	ProviderStatus string `json:"providerStatus"`
}

// StatusResult is the gateway's current view of an operation.
type StatusResult struct {
	ExternalID     string `json:"externalId"`
	ProviderStatus string `json:"providerStatus"`
	Amount         string `json:"amount"`
	FailureReason  string `json:"failureReason,omitempty"`
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func validateCommon(amount decimal.Decimal, phone, correspondent, currency, country string) error {
	if !amount.IsPositive() {
		return xerrors.NewValidation("amount", "must be greater than zero")
	}
	if phone == "" || !phonePattern.MatchString(phone) {
		return xerrors.NewValidation("phoneNumber", "must be a valid MSISDN")
	}
	if correspondent == "" {
		return xerrors.NewValidation("correspondent", "is required")
	}
	if currency == "" {
		return xerrors.NewValidation("currency", "is required")
	}
	if country == "" {
		return xerrors.NewValidation("country", "is required")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s -> %d: %s",
			xerrors.ErrGatewayUnavailable, req.Method, req.URL.Path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", xerrors.ErrGatewayUnavailable, err)
	}
	return nil
}
