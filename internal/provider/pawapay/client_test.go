package pawapay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	return NewClient(url, "test-token", 2*time.Second)
}

func TestCreateDepositSendsWireFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deposits", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]string{"depositId": got["depositId"].(string), "status": "ACCEPTED"})
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).CreateDeposit(context.Background(), DepositParams{
		DepositID:     "dep-123",
		Amount:        decimal.RequireFromString("100.50"),
		PhoneNumber:   "+254700111222",
		Correspondent: "MTN_MOMO_UGA",
		Currency:      "UGX",
		Country:       "UGA",
		Description:   "DEP-ABC",
	})
	require.NoError(t, err)
	assert.Equal(t, "dep-123", res.ExternalID)
	assert.Equal(t, "ACCEPTED", res.ProviderStatus)

	assert.Equal(t, "100.5", got["amount"], "amount travels as a decimal string")
	payer := got["payer"].(map[string]any)
	assert.Equal(t, "MSISDN", payer["type"])
	assert.Equal(t, "+254700111222", payer["address"].(map[string]any)["value"])
}

func TestCreateDepositValidation(t *testing.T) {
	c := testClient("http://unused")

	cases := []struct {
		name   string
		mutate func(*DepositParams)
		field  string
	}{
		{"zero amount", func(p *DepositParams) { p.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(p *DepositParams) { p.Amount = decimal.RequireFromString("-5") }, "amount"},
		{"bad phone", func(p *DepositParams) { p.PhoneNumber = "abc" }, "phoneNumber"},
		{"missing correspondent", func(p *DepositParams) { p.Correspondent = "" }, "correspondent"},
		{"missing currency", func(p *DepositParams) { p.Currency = "" }, "currency"},
		{"missing country", func(p *DepositParams) { p.Country = "" }, "country"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DepositParams{
				DepositID:     "dep-123",
				Amount:        decimal.RequireFromString("10"),
				PhoneNumber:   "+254700111222",
				Correspondent: "MTN_MOMO_UGA",
				Currency:      "UGX",
				Country:       "UGA",
			}
			tc.mutate(&p)
			_, err := c.CreateDeposit(context.Background(), p)
			require.Error(t, err)
			var ve *xerrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestServerErrorMapsToGatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreatePayout(context.Background(), PayoutParams{
		PayoutID:      "pay-1",
		Amount:        decimal.RequireFromString("10"),
		PhoneNumber:   "+254700111222",
		Correspondent: "MTN_MOMO_UGA",
		Currency:      "UGX",
		Country:       "UGA",
	})
	assert.ErrorIs(t, err, xerrors.ErrGatewayUnavailable)
}

func TestGetStatusDecodesArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payouts/pay-1", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{{
			"payoutId": "pay-1",
			"status":   "FAILED",
			"amount":   "60.00",
			"failureReason": map[string]string{
				"rejectionCode":    "INSUFFICIENT_BALANCE",
				"rejectionMessage": "recipient wallet rejected",
			},
		}})
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).GetStatus(context.Background(), "pay-1", domain.OpPayout)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", res.ExternalID)
	assert.Equal(t, "FAILED", res.ProviderStatus)
	assert.Equal(t, "60.00", res.Amount)
	assert.Equal(t, "INSUFFICIENT_BALANCE: recipient wallet rejected", res.FailureReason)
}

func TestGetStatusEmptyArrayIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetStatus(context.Background(), "ghost", domain.OpDeposit)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestGetStatusRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "try later", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{{"depositId": "dep-1", "status": "COMPLETED", "amount": "10.00"}})
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).GetStatus(context.Background(), "dep-1", domain.OpDeposit)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", res.ProviderStatus)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetStatusGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetStatus(context.Background(), "dep-1", domain.OpDeposit)
	assert.ErrorIs(t, err, xerrors.ErrGatewayUnavailable)
	assert.Equal(t, int32(statusMaxAttempts), hits.Load())
}
