// Package orders builds purchase and sale aggregates. Everything a single
// order needs (header, lines, stock movements, total) is written inside one
// database transaction; a failure at any step leaves nothing behind.
package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"
	"agropos-system/internal/notify"
	"agropos-system/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateLine struct {
	ProductID int64
	Quantity  decimal.Decimal
	// UnitPrice overrides the product's selling price for sales and carries
	// the invoice cost for purchases (where it is required).
	UnitPrice *decimal.Decimal
}

type CreateOrderInput struct {
	Kind       string
	SupplierID *int64
	CustomerID *int64
	Channel    string
	Lines      []CreateLine
}

type Engine struct {
	store  repository.Store
	events notify.Publisher
	log    zerolog.Logger
}

func NewEngine(store repository.Store, events notify.Publisher, log zerolog.Logger) *Engine {
	return &Engine{store: store, events: events, log: log}
}

// CreateOrder validates the input, admits the order against current stock
// (sales only) and persists header, lines and ledger entries atomically.
// The product rows are locked for the duration of the check-then-append
// sequence, so concurrent sales of the same product serialize and can never
// jointly oversell it.
func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var order *models.Order
	err := e.store.Atomic(ctx, func(tx repository.Store) error {
		products, err := lockProducts(ctx, tx, in)
		if err != nil {
			return err
		}

		if in.Kind == models.OrderKindSale {
			if err := admitSale(ctx, tx, in, products); err != nil {
				return err
			}
		}

		now := time.Now()
		o := &models.Order{
			Kind:       in.Kind,
			SupplierID: in.SupplierID,
			CustomerID: in.CustomerID,
			OrderDate:  now,
			Total:      decimal.Zero,
			Status:     initialStatus(in),
			Channel:    in.Channel,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}

		total := decimal.Zero
		for _, l := range in.Lines {
			price := unitPrice(l, products[l.ProductID])
			line := models.OrderLine{
				OrderID:   o.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				UnitPrice: price,
			}
			if err := tx.CreateOrderLine(ctx, &line); err != nil {
				return err
			}
			o.Lines = append(o.Lines, line)
			total = total.Add(l.Quantity.Mul(price))

			movement := models.StockMovement{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Reference: movementReference(in, o.ID),
			}
			if in.Kind == models.OrderKindSale {
				movement.Quantity = l.Quantity.Neg()
				movement.MovementType = models.MovementOut
			} else {
				movement.MovementType = models.MovementIn
			}
			if err := tx.AppendMovement(ctx, &movement); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrderTotal(ctx, o.ID, total); err != nil {
			return err
		}
		o.Total = total
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publishCreated(ctx, order)
	return order, nil
}

func validateInput(in CreateOrderInput) error {
	switch in.Kind {
	case models.OrderKindPurchase:
		if in.SupplierID == nil {
			return &errs.ValidationError{Reason: "purchase requires a supplier"}
		}
	case models.OrderKindSale:
		if in.Channel != models.ChannelPOS && in.Channel != models.ChannelWeb {
			return &errs.ValidationError{Reason: "sale requires channel POS or WEB"}
		}
	default:
		return &errs.ValidationError{Reason: "kind must be PURCHASE or SALE"}
	}
	if len(in.Lines) == 0 {
		return &errs.ValidationError{Reason: "order must have at least one line"}
	}
	for _, l := range in.Lines {
		if !l.Quantity.IsPositive() {
			return &errs.ValidationError{Reason: fmt.Sprintf("quantity for product %d must be positive", l.ProductID)}
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return &errs.ValidationError{Reason: fmt.Sprintf("unit price for product %d must not be negative", l.ProductID)}
		}
		if in.Kind == models.OrderKindPurchase && l.UnitPrice == nil {
			return &errs.ValidationError{Reason: fmt.Sprintf("purchase line for product %d requires a unit price", l.ProductID)}
		}
	}
	return nil
}

// lockProducts resolves and row-locks every referenced product. Locks are
// taken in ascending product id so two multi-line orders cannot deadlock
// each other.
func lockProducts(ctx context.Context, tx repository.Store, in CreateOrderInput) (map[int64]*models.Product, error) {
	ids := make([]int64, 0, len(in.Lines))
	seen := make(map[int64]bool, len(in.Lines))
	for _, l := range in.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("product %d: %w", id, errs.ErrNotFound)
			}
			return nil, err
		}
		if in.Kind == models.OrderKindSale && !p.IsActive {
			return nil, &errs.ValidationError{Reason: fmt.Sprintf("product %q is not available for sale", p.Name)}
		}
		products[id] = p
	}
	return products, nil
}

// admitSale reads each product's stock sum under the row lock and rejects
// the whole order if any product cannot cover its total requested quantity.
func admitSale(ctx context.Context, tx repository.Store, in CreateOrderInput, products map[int64]*models.Product) error {
	requested := make(map[int64]decimal.Decimal, len(products))
	for _, l := range in.Lines {
		requested[l.ProductID] = requested[l.ProductID].Add(l.Quantity)
	}
	for id, want := range requested {
		available, err := tx.StockQuantity(ctx, id)
		if err != nil {
			return err
		}
		if available.LessThan(want) {
			return &errs.InsufficientStockError{
				ProductID: id,
				Requested: want,
				Available: available,
			}
		}
	}
	return nil
}

func initialStatus(in CreateOrderInput) string {
	if in.Kind == models.OrderKindSale && in.Channel == models.ChannelWeb {
		return models.StatusPending
	}
	return models.StatusCompleted
}

func unitPrice(l CreateLine, p *models.Product) decimal.Decimal {
	if l.UnitPrice != nil {
		return *l.UnitPrice
	}
	return p.SellingPrice
}

func movementReference(in CreateOrderInput, orderID int64) string {
	if in.Kind == models.OrderKindPurchase {
		return fmt.Sprintf("Purchase #%d", orderID)
	}
	if in.Channel == models.ChannelWeb {
		return fmt.Sprintf("Online Order #%d", orderID)
	}
	return fmt.Sprintf("POS Sale #%d", orderID)
}

// publishCreated runs after commit. A publish failure never affects the
// already committed order.
func (e *Engine) publishCreated(ctx context.Context, o *models.Order) {
	if e.events == nil {
		return
	}
	ev := notify.OrderEvent{
		EventType: notify.EventOrderCreated,
		OrderID:   o.ID,
		Kind:      o.Kind,
		Channel:   o.Channel,
		Status:    o.Status,
		Total:     o.Total.StringFixed(2),
		Timestamp: time.Now(),
	}
	if err := e.events.PublishOrderEvent(ctx, ev); err != nil {
		e.log.Error().Err(err).Int64("order_id", o.ID).Msg("failed to publish order event")
	}
}
