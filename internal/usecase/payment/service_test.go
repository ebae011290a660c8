package payment

import (
	"context"
	"testing"

	"payment-service/internal/domain"
	"payment-service/internal/provider/pawapay"
	"payment-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	createStatus string
	createErr    error
	calls        int
}

func (f *fakeGateway) CreateDeposit(_ context.Context, p pawapay.DepositParams) (*pawapay.CreateResult, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &pawapay.CreateResult{ExternalID: p.DepositID, ProviderStatus: f.createStatus}, nil
}

func (f *fakeGateway) CreatePayout(_ context.Context, p pawapay.PayoutParams) (*pawapay.CreateResult, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &pawapay.CreateResult{ExternalID: p.PayoutID, ProviderStatus: f.createStatus}, nil
}

func (f *fakeGateway) CreateRefund(_ context.Context, p pawapay.RefundParams) (*pawapay.CreateResult, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &pawapay.CreateResult{ExternalID: p.RefundID, ProviderStatus: f.createStatus}, nil
}

type fakeLedger struct {
	created   []*domain.Transaction
	finalized []string
	existing  map[string]*domain.Transaction
}

func (f *fakeLedger) CreatePending(_ context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	cp := *t
	cp.ID = int64(len(f.created) + 1)
	cp.Status = domain.TxStatusPending
	f.created = append(f.created, &cp)
	return &cp, nil
}

func (f *fakeLedger) FindByCorrelationID(_ context.Context, ref string, _ domain.OpType) (*domain.Transaction, error) {
	tx, ok := f.existing[ref]
	if !ok {
		return nil, xerrors.ErrTransactionNotFound
	}
	return tx, nil
}

func (f *fakeLedger) ApplyProviderStatus(_ context.Context, ref string, _ domain.OpType, providerStatus, _, _ string) (*domain.Transaction, bool, error) {
	f.finalized = append(f.finalized, ref)
	return &domain.Transaction{Status: domain.MapProviderStatus(providerStatus)}, true, nil
}

type fakeWallets struct {
	balance decimal.Decimal
}

func (f *fakeWallets) GetOrCreate(_ context.Context, userID int64) (*domain.Wallet, error) {
	return &domain.Wallet{UserID: userID, Balance: f.balance}, nil
}

func validInput(amount string) DepositInput {
	return DepositInput{
		Amount:        decimal.RequireFromString(amount),
		PhoneNumber:   "+254700111222",
		Correspondent: "MTN_MOMO_UGA",
		Currency:      "UGX",
		Country:       "UGA",
	}
}

func TestDepositStaysPendingWhenAccepted(t *testing.T) {
	gw := &fakeGateway{createStatus: "ACCEPTED"}
	led := &fakeLedger{}
	svc := New(gw, led, &fakeWallets{}, zap.NewNop())

	tx, err := svc.Deposit(context.Background(), 7, validInput("100.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Equal(t, domain.TxTypeDeposit, tx.Type)
	require.Len(t, led.created, 1)
	require.NotNil(t, led.created[0].GatewayDepositID)
	assert.Equal(t, 1, gw.calls)
	assert.Empty(t, led.finalized)
}

func TestDepositValidationRejectsBeforeLedgerWrite(t *testing.T) {
	gw := &fakeGateway{createStatus: "ACCEPTED"}
	led := &fakeLedger{}
	svc := New(gw, led, &fakeWallets{}, zap.NewNop())

	in := validInput("100.00")
	in.PhoneNumber = "not-a-phone"
	_, err := svc.Deposit(context.Background(), 7, in)
	assert.True(t, xerrors.IsValidation(err))
	assert.Empty(t, led.created, "invalid input must not create a ledger row")
	assert.Zero(t, gw.calls)
}

func TestDepositGatewayUnreachableLeavesPending(t *testing.T) {
	gw := &fakeGateway{createErr: xerrors.ErrGatewayUnavailable}
	led := &fakeLedger{}
	svc := New(gw, led, &fakeWallets{}, zap.NewNop())

	tx, err := svc.Deposit(context.Background(), 7, validInput("100.00"))
	require.NoError(t, err, "unknown outcome must not surface as failure")
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Len(t, led.created, 1, "the pending row stays for the reconciler")
	assert.Empty(t, led.finalized)
}

func TestDepositRejectedAtCreationFinalizesFailed(t *testing.T) {
	gw := &fakeGateway{createStatus: "REJECTED"}
	led := &fakeLedger{}
	svc := New(gw, led, &fakeWallets{}, zap.NewNop())

	tx, err := svc.Deposit(context.Background(), 7, validInput("100.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	require.Len(t, led.finalized, 1)
}

func TestPayoutRequiresAvailableBalance(t *testing.T) {
	gw := &fakeGateway{createStatus: "ACCEPTED"}
	led := &fakeLedger{}
	svc := New(gw, led, &fakeWallets{balance: decimal.RequireFromString("20.00")}, zap.NewNop())

	_, err := svc.Payout(context.Background(), 7, validInput("60.00"))
	assert.ErrorIs(t, err, xerrors.ErrInsufficientFunds)
	assert.Empty(t, led.created)
	assert.Zero(t, gw.calls)
}

func TestPayoutAcceptedStaysPending(t *testing.T) {
	gw := &fakeGateway{createStatus: "ACCEPTED"}
	led := &fakeLedger{}
	svc := New(gw, led, &fakeWallets{balance: decimal.RequireFromString("100.00")}, zap.NewNop())

	tx, err := svc.Payout(context.Background(), 7, validInput("60.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeWithdrawal, tx.Type)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	require.Len(t, led.created, 1)
	require.NotNil(t, led.created[0].GatewayPayoutID)
}

func TestRefundRequiresCompletedDeposit(t *testing.T) {
	depositRef := "11111111-1111-1111-1111-111111111111"
	led := &fakeLedger{existing: map[string]*domain.Transaction{
		depositRef: {
			UserID:           7,
			Type:             domain.TxTypeDeposit,
			Amount:           decimal.RequireFromString("100.00"),
			Status:           domain.TxStatusPending,
			GatewayDepositID: &depositRef,
		},
	}}
	svc := New(&fakeGateway{createStatus: "ACCEPTED"}, led, &fakeWallets{}, zap.NewNop())

	_, err := svc.Refund(context.Background(), depositRef, decimal.RequireFromString("50.00"), "buyer dispute")
	assert.True(t, xerrors.IsValidation(err))
	assert.Empty(t, led.created)
}

func TestRefundLinksOriginalDeposit(t *testing.T) {
	depositRef := "11111111-1111-1111-1111-111111111111"
	led := &fakeLedger{existing: map[string]*domain.Transaction{
		depositRef: {
			UserID:           7,
			Type:             domain.TxTypeDeposit,
			Amount:           decimal.RequireFromString("100.00"),
			Status:           domain.TxStatusCompleted,
			Applied:          true,
			GatewayDepositID: &depositRef,
		},
	}}
	svc := New(&fakeGateway{createStatus: "ACCEPTED"}, led, &fakeWallets{}, zap.NewNop())

	tx, err := svc.Refund(context.Background(), depositRef, decimal.RequireFromString("50.00"), "buyer dispute")
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeRefund, tx.Type)
	require.NotNil(t, tx.RefundedDepositID)
	assert.Equal(t, depositRef, *tx.RefundedDepositID)
	require.NotNil(t, tx.GatewayRefundID)
	assert.NotEqual(t, depositRef, *tx.GatewayRefundID, "refund carries its own correlation id")
}
