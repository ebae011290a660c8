package ledger

import (
	"context"
	"sync"
	"testing"

	"payment-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(store Store) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return New(store, notifier, zap.NewNop()), notifier
}

func pendingDeposit(t *testing.T, svc *Service, userID int64, ref, amount string) *domain.Transaction {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	tx, err := svc.CreatePending(context.Background(), &domain.Transaction{
		UserID:           userID,
		Type:             domain.TxTypeDeposit,
		Amount:           amt,
		GatewayDepositID: &ref,
	})
	require.NoError(t, err)
	return tx
}

func pendingPayout(t *testing.T, svc *Service, userID int64, ref, amount string) *domain.Transaction {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	tx, err := svc.CreatePending(context.Background(), &domain.Transaction{
		UserID:          userID,
		Type:            domain.TxTypeWithdrawal,
		Amount:          amt,
		GatewayPayoutID: &ref,
	})
	require.NoError(t, err)
	return tx
}

func TestDepositHappyPath(t *testing.T) {
	store := newMemStore()
	svc, notifier := newTestService(store)
	ctx := context.Background()

	tx := pendingDeposit(t, svc, 7, "dep-1", "150.00")
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.True(t, store.balance(7).IsZero(), "pending deposit must not credit")

	final, changed, err := svc.ApplyProviderStatus(ctx, "dep-1", domain.OpDeposit, "COMPLETED", "", "webhook")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TxStatusCompleted, final.Status)
	assert.True(t, final.Applied)
	assert.True(t, store.balance(7).Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, 1, notifier.count())
}

func TestCreatePendingDuplicateIsSuccess(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	first := pendingDeposit(t, svc, 7, "dep-1", "10.00")
	second := pendingDeposit(t, svc, 7, "dep-1", "10.00")
	assert.Equal(t, first.ID, second.ID, "duplicate create must return the existing row")
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc, notifier := newTestService(store)
	ctx := context.Background()

	pendingDeposit(t, svc, 7, "dep-1", "150.00")

	for i := 0; i < 5; i++ {
		_, _, err := svc.ApplyProviderStatus(ctx, "dep-1", domain.OpDeposit, "COMPLETED", "", "webhook")
		require.NoError(t, err)
	}

	assert.True(t, store.balance(7).Equal(decimal.RequireFromString("150.00")),
		"five deliveries must credit exactly once")
	assert.Equal(t, 1, notifier.count(), "only the state change notifies")
}

func TestWebhookAndPollerRaceAppliesOnce(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	pendingDeposit(t, svc, 7, "dep-1", "150.00")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		source := "webhook"
		if i%2 == 0 {
			source = "reconciler"
		}
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			_, _, err := svc.ApplyProviderStatus(ctx, "dep-1", domain.OpDeposit, "COMPLETED", "", src)
			assert.NoError(t, err)
		}(source)
	}
	wg.Wait()

	assert.True(t, store.balance(7).Equal(decimal.RequireFromString("150.00")),
		"concurrent finalizers must credit exactly once")
}

func TestPayoutDebitsOnlyOnCompletion(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	store.fund(9, "100.00")

	pendingPayout(t, svc, 9, "pay-1", "60.00")
	assert.True(t, store.balance(9).Equal(decimal.RequireFromString("100.00")),
		"pending payout must not debit")

	_, changed, err := svc.ApplyProviderStatus(ctx, "pay-1", domain.OpPayout, "COMPLETED", "", "webhook")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, store.balance(9).Equal(decimal.RequireFromString("40.00")))
}

func TestFailedPayoutRefundsExactlyOnce(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	store.fund(9, "100.00")

	pendingPayout(t, svc, 9, "pay-1", "60.00")

	_, _, err := svc.ApplyProviderStatus(ctx, "pay-1", domain.OpPayout, "COMPLETED", "", "webhook")
	require.NoError(t, err)
	require.True(t, store.balance(9).Equal(decimal.RequireFromString("40.00")))

	// late correction from the provider
	tx, changed, err := svc.ApplyProviderStatus(ctx, "pay-1", domain.OpPayout, "FAILED", "payout bounced", "reconciler")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	assert.False(t, tx.Applied)
	assert.True(t, store.balance(9).Equal(decimal.RequireFromString("100.00")))

	// the correction itself redelivered
	_, changed, err = svc.ApplyProviderStatus(ctx, "pay-1", domain.OpPayout, "FAILED", "payout bounced", "webhook")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, store.balance(9).Equal(decimal.RequireFromString("100.00")),
		"correction must refund exactly once")
}

func TestNonTerminalStatusIgnored(t *testing.T) {
	store := newMemStore()
	svc, notifier := newTestService(store)
	ctx := context.Background()

	pendingDeposit(t, svc, 7, "dep-1", "10.00")

	tx, changed, err := svc.ApplyProviderStatus(ctx, "dep-1", domain.OpDeposit, "SUBMITTED", "", "webhook")
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.False(t, changed)
	assert.True(t, store.balance(7).IsZero())
	assert.Equal(t, 0, notifier.count())
}

func TestFailedDepositLeavesBalanceUntouched(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	pendingDeposit(t, svc, 7, "dep-1", "10.00")

	tx, changed, err := svc.ApplyProviderStatus(ctx, "dep-1", domain.OpDeposit, "REJECTED", "payer declined", "webhook")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	assert.True(t, store.balance(7).IsZero())
}

func TestRecordUnsolicitedWritesAuditRow(t *testing.T) {
	store := newMemStore()
	svc, notifier := newTestService(store)
	ctx := context.Background()

	tx, err := svc.RecordUnsolicited(ctx, "ghost-1", domain.OpDeposit, "COMPLETED", "55.00")
	require.NoError(t, err)
	assert.Equal(t, int64(0), tx.UserID)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	assert.Equal(t, domain.TxTypeDeposit, tx.Type)
	require.NotNil(t, tx.GatewayDepositID)
	assert.Equal(t, "ghost-1", *tx.GatewayDepositID)

	// audit rows never move money or notify anyone
	assert.Empty(t, store.wallets)
	assert.Equal(t, 0, notifier.count())

	// redelivery of the same ghost id stays a single row
	again, err := svc.RecordUnsolicited(ctx, "ghost-1", domain.OpDeposit, "COMPLETED", "55.00")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
}
