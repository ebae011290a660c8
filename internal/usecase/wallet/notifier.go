package wallet

import (
	"context"
	"encoding/json"
	"time"

	"payment-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const TransactionEventsChannel = "transaction_events"

// PaymentEvent is the payload published for the notification service after
// a terminal transaction state change.
type PaymentEvent struct {
	UserID        int64     `json:"user_id"`
	Kind          string    `json:"kind"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	TxType        string    `json:"tx_type,omitempty"`
	Status        string    `json:"status,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Notifier publishes payment events to the notification service over redis
// pub/sub. Delivery is fire-and-forget: a publish failure is logged and
// dropped, it never blocks or fails the financial transition that produced
// the event.
type Notifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewNotifier(rdb *redis.Client, logger *zap.Logger) *Notifier {
	return &Notifier{rdb: rdb, logger: logger}
}

func (n *Notifier) PaymentUpdate(userID int64, message string, tx *domain.Transaction) {
	if n == nil || n.rdb == nil {
		return
	}
	event := PaymentEvent{
		UserID:    userID,
		Kind:      "payment",
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if tx != nil {
		event.CorrelationID = tx.CorrelationID()
		event.TxType = string(tx.Type)
		event.Status = string(tx.Status)
		event.Amount = tx.Amount.StringFixed(2)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := json.Marshal(event)
		if err != nil {
			n.logger.Error("failed to marshal payment event", zap.Error(err))
			return
		}
		if err := n.rdb.Publish(ctx, TransactionEventsChannel, payload).Err(); err != nil {
			n.logger.Error("failed to publish payment event",
				zap.Int64("user_id", userID),
				zap.Error(err))
		}
	}()
}
