package escrow

import (
	"context"
	"errors"
	"fmt"

	"payment-service/internal/domain"
	"payment-service/internal/xerrors"

	"go.uber.org/zap"
)

// Service coordinates the buyer-funds hold lifecycle around an order:
// accepted holds the price, completed releases it to the seller, cancelled
// returns it to the buyer. Money never leaves the wallet system between
// hold and release, so buyer delta + seller delta is always zero.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

func New(store Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// OnOrderAccepted moves the order price from the buyer's available balance
// into the held balance. Zero-price orders carry no funds and are skipped.
func (s *Service) OnOrderAccepted(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	if order.Price.IsZero() {
		s.logger.Info("zero-price order, no hold created", zap.Int64("order_id", order.ID))
		return nil, nil
	}

	hold, err := s.store.HoldForOrder(ctx, order)
	if err != nil {
		if errors.Is(err, xerrors.ErrInsufficientFunds) {
			s.logger.Warn("order hold rejected, insufficient funds",
				zap.Int64("order_id", order.ID),
				zap.Int64("buyer_id", order.BuyerID))
		}
		return nil, err
	}

	s.logger.Info("order funds held",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", order.BuyerID),
		zap.String("amount", order.Price.String()))
	if s.notifier != nil {
		s.notifier.PaymentUpdate(order.BuyerID,
			fmt.Sprintf("%s has been held for order #%d", order.Price.StringFixed(2), order.ID), hold)
	}
	return hold, nil
}

// OnOrderCompleted releases the held funds to the seller. Safe to call
// more than once; redeliveries return the already-settled pair.
func (s *Service) OnOrderCompleted(ctx context.Context, order *domain.Order) (*domain.Transaction, *domain.Transaction, error) {
	if order.Price.IsZero() {
		return nil, nil, nil
	}

	hold, earned, err := s.store.ReleaseOnCompletion(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	if earned == nil {
		// hold was already settled; nothing moved this call
		return hold, nil, nil
	}

	s.logger.Info("order funds released to seller",
		zap.Int64("order_id", order.ID),
		zap.Int64("seller_id", order.SellerID),
		zap.String("amount", hold.Amount.String()))
	if s.notifier != nil {
		s.notifier.PaymentUpdate(order.SellerID,
			fmt.Sprintf("You earned %s from order #%d", earned.Amount.StringFixed(2), order.ID), earned)
	}
	return hold, earned, nil
}

// OnOrderCancelled returns the held funds to the buyer. An order that never
// had a hold, or whose hold is already settled, is a no-op.
func (s *Service) OnOrderCancelled(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	if order.Price.IsZero() {
		return nil, nil
	}

	hold, err := s.store.RefundOnCancellation(ctx, order)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		s.logger.Info("cancelled order had no hold", zap.Int64("order_id", order.ID))
		return nil, nil
	}
	if hold.Status != domain.TxStatusCancelled {
		return hold, nil
	}

	s.logger.Info("order hold returned to buyer",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", order.BuyerID),
		zap.String("amount", hold.Amount.String()))
	if s.notifier != nil {
		s.notifier.PaymentUpdate(order.BuyerID,
			fmt.Sprintf("%s held for order #%d has been returned to your wallet", hold.Amount.StringFixed(2), order.ID), hold)
	}
	return hold, nil
}
