package payments

import (
	"context"
	"fmt"
	"time"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"
	"agropos-system/internal/notify"
	"agropos-system/internal/repository"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Reconciler owns the PENDING -> COMPLETED / CANCELLED lifecycle of online
// sales and the exactly-once application of provider callbacks.
type Reconciler struct {
	store  repository.Store
	push   PushClient
	events notify.Publisher
	log    zerolog.Logger
}

func NewReconciler(store repository.Store, push PushClient, events notify.Publisher, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, push: push, events: events, log: log}
}

// InitiatePayment asks the provider to prompt the payer for the order's
// total. On provider failure nothing is persisted; the order and its stock
// deduction always stand, so the caller can simply retry. Stock reservation
// is never tied to payment success.
func (r *Reconciler) InitiatePayment(ctx context.Context, orderID int64, phone string) (*models.PaymentAttempt, error) {
	order, err := r.store.OrderByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order %d: %w", orderID, errs.ErrNotFound)
		}
		return nil, err
	}
	if order.Kind != models.OrderKindSale || order.Channel != models.ChannelWeb {
		return nil, fmt.Errorf("order %d is not an online sale: %w", orderID, errs.ErrInvalidState)
	}
	if order.Status != models.StatusPending {
		return nil, fmt.Errorf("order %d is not pending: %w", orderID, errs.ErrInvalidState)
	}

	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	resp, err := r.push.RequestPush(ctx, normalized, order.Total, fmt.Sprintf("Order%d", order.ID))
	if err != nil {
		r.log.Warn().Err(err).Int64("order_id", order.ID).Msg("push payment initiation failed")
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		OrderID:           order.ID,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Amount:            order.Total,
		Phone:             normalized,
		Status:            models.PaymentPending,
	}
	if err := r.store.CreatePaymentAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	r.log.Info().
		Int64("order_id", order.ID).
		Str("checkout_request_id", attempt.CheckoutRequestID).
		Msg("push payment initiated")
	return attempt, nil
}

// ApplyCallback applies one provider callback. Unknown checkout request ids
// are discarded, and an attempt that already left PENDING is never touched
// again, so duplicate deliveries are no-ops. The attempt row lock makes
// same-id concurrent deliveries apply once.
func (r *Reconciler) ApplyCallback(ctx context.Context, checkoutRequestID string, resultCode int) error {
	if checkoutRequestID == "" {
		r.log.Warn().Msg("callback without checkout request id discarded")
		return nil
	}

	var completedOrderID, failedOrderID int64
	err := r.store.Atomic(ctx, func(tx repository.Store) error {
		attempt, err := tx.LockPaymentByCheckoutID(ctx, checkoutRequestID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				r.log.Warn().
					Str("checkout_request_id", checkoutRequestID).
					Msg("callback for unknown checkout request id discarded")
				return nil
			}
			return err
		}
		if attempt.Status != models.PaymentPending {
			return nil
		}

		if resultCode == 0 {
			if err := tx.UpdatePaymentStatus(ctx, attempt.ID, models.PaymentCompleted); err != nil {
				return err
			}
			if err := tx.UpdateOrderStatus(ctx, attempt.OrderID, models.StatusCompleted); err != nil {
				return err
			}
			completedOrderID = attempt.OrderID
			return nil
		}

		// Failed prompt: the order stays PENDING so payment can be retried.
		if err := tx.UpdatePaymentStatus(ctx, attempt.ID, models.PaymentFailed); err != nil {
			return err
		}
		failedOrderID = attempt.OrderID
		return nil
	})
	if err != nil {
		return err
	}

	if completedOrderID != 0 {
		r.publish(ctx, notify.EventOrderCompleted, completedOrderID, models.StatusCompleted)
	} else if failedOrderID != 0 {
		r.log.Info().
			Str("checkout_request_id", checkoutRequestID).
			Int("result_code", resultCode).
			Msg("payment attempt failed")
		r.publish(ctx, notify.EventPaymentFailed, failedOrderID, models.StatusPending)
	}
	return nil
}

// ApproveOrder is the staff path for settling a pending online order
// without an automated payment confirmation.
func (r *Reconciler) ApproveOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var approved *models.Order
	err := r.store.Atomic(ctx, func(tx repository.Store) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("order %d: %w", orderID, errs.ErrNotFound)
			}
			return err
		}
		if order.Kind != models.OrderKindSale || order.Status != models.StatusPending {
			return fmt.Errorf("order %d is not a pending sale: %w", orderID, errs.ErrInvalidState)
		}
		if err := tx.UpdateOrderStatus(ctx, order.ID, models.StatusCompleted); err != nil {
			return err
		}
		order.Status = models.StatusCompleted
		approved = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, notify.EventOrderCompleted, approved.ID, models.StatusCompleted)
	return approved, nil
}

func (r *Reconciler) publish(ctx context.Context, eventType string, orderID int64, status string) {
	if r.events == nil {
		return
	}
	ev := notify.OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		Kind:      models.OrderKindSale,
		Status:    status,
		Timestamp: time.Now(),
	}
	if err := r.events.PublishOrderEvent(ctx, ev); err != nil {
		r.log.Error().Err(err).Int64("order_id", orderID).Msg("failed to publish order event")
	}
}
