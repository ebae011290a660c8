package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedTransition is returned for status changes the ledger does
// not permit (e.g. a provider webhook against an escrow transaction).
var ErrUnsupportedTransition = errors.New("unsupported status transition")

// MapProviderStatus maps a gateway-reported status onto the internal
// lifecycle. Anything not in the table is treated as still pending and is
// ignored by callers. This table is the only place the mapping exists.
func MapProviderStatus(providerStatus string) TxStatus {
	switch providerStatus {
	case "COMPLETED":
		return TxStatusCompleted
	case "FAILED", "EXPIRED", "REJECTED":
		return TxStatusFailed
	default: // ACCEPTED, SUBMITTED, ENQUEUED, PROCESSING, ...
		return TxStatusPending
	}
}

// BalanceDelta is the wallet mutation a transition produces. Zero values
// mean no movement.
type BalanceDelta struct {
	Available decimal.Decimal
	OnHold    decimal.Decimal
}

func (d BalanceDelta) IsZero() bool {
	return d.Available.IsZero() && d.OnHold.IsZero()
}

// TransitionPlan is the outcome of planning a status change against the
// current ledger row: the new status/applied flag plus the balance delta
// that must be applied in the same atomic unit.
type TransitionPlan struct {
	NoOp      bool
	NewStatus TxStatus
	Applied   bool
	Delta     BalanceDelta
}

// PlanTransition computes the effect of moving tx to target. It is the
// single source of truth for balance application, shared by the webhook
// path, the reconciliation poller and the in-memory test store:
//
//   - deposits credit available funds on completed, nothing on failed;
//   - withdrawals and refunds debit available funds on completed;
//   - a withdrawal or refund that was already applied and is later
//     reported failed is a provider correction: the amount is credited
//     back and applied flips to false;
//   - re-delivering the status a transaction already has is a no-op, as
//     is any other transition out of a terminal state.
func PlanTransition(tx *Transaction, target TxStatus) (TransitionPlan, error) {
	if tx.Type == TxTypeOrderPaid || tx.Type == TxTypeOrderEarned {
		return TransitionPlan{}, ErrUnsupportedTransition
	}
	if target == TxStatusPending || target == tx.Status {
		return TransitionPlan{NoOp: true, NewStatus: tx.Status, Applied: tx.Applied}, nil
	}

	switch tx.Status {
	case TxStatusPending:
		switch target {
		case TxStatusCompleted:
			return TransitionPlan{
				NewStatus: TxStatusCompleted,
				Applied:   true,
				Delta:     BalanceDelta{Available: settleDirection(tx.Type).Mul(tx.Amount)},
			}, nil
		case TxStatusFailed:
			plan := TransitionPlan{NewStatus: TxStatusFailed, Applied: false}
			if tx.Applied {
				// applied had incorrectly been set while pending; revert
				plan.Delta = BalanceDelta{Available: settleDirection(tx.Type).Neg().Mul(tx.Amount)}
			}
			return plan, nil
		}
	case TxStatusCompleted:
		if target == TxStatusFailed && tx.Applied {
			// late provider correction: give the money back exactly once
			return TransitionPlan{
				NewStatus: TxStatusFailed,
				Applied:   false,
				Delta:     BalanceDelta{Available: settleDirection(tx.Type).Neg().Mul(tx.Amount)},
			}, nil
		}
	}

	// terminal states are final for everything else
	return TransitionPlan{NoOp: true, NewStatus: tx.Status, Applied: tx.Applied}, nil
}

// settleDirection is +1 for types that credit the wallet on completion and
// -1 for types that debit it.
func settleDirection(t TxType) decimal.Decimal {
	if t == TxTypeDeposit {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}
