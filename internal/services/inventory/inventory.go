// Package inventory exposes the read side of the stock ledger and the staff
// adjustment path. Stock is never stored; every quantity is a fold over the
// movement ledger.
package inventory

import (
	"context"
	"fmt"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"
	"agropos-system/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	store repository.Store
	log   zerolog.Logger
}

func NewService(store repository.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// StockQuantity returns the signed sum of all movements for the product;
// zero when none exist. Dashboard callers may tolerate slight staleness —
// the admission check inside the order engine reads under a row lock instead.
func (s *Service) StockQuantity(ctx context.Context, productID int64) (decimal.Decimal, error) {
	if _, err := s.store.ProductByID(ctx, productID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, fmt.Errorf("product %d: %w", productID, errs.ErrNotFound)
		}
		return decimal.Zero, err
	}
	return s.store.StockQuantity(ctx, productID)
}

// Movements lists ledger entries newest first. productID 0 lists all.
func (s *Service) Movements(ctx context.Context, productID int64, limit, offset int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Movements(ctx, productID, limit, offset)
}

// LowStock runs a fresh aggregation each call: active products whose ledger
// sum is at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]repository.ProductStock, error) {
	return s.store.LowStock(ctx)
}

// Adjust appends a compensating ledger entry. Entries are never edited or
// deleted; a stock correction is a new signed movement. Negative adjustments
// are admitted against the current sum under the product row lock, the same
// discipline sales use.
func (s *Service) Adjust(ctx context.Context, productID int64, quantity decimal.Decimal, reason string) (*models.StockMovement, error) {
	if quantity.IsZero() {
		return nil, &errs.ValidationError{Reason: "adjustment quantity must not be zero"}
	}
	if reason == "" {
		return nil, &errs.ValidationError{Reason: "adjustment requires a reason"}
	}

	var movement *models.StockMovement
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		if _, err := tx.LockProduct(ctx, productID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("product %d: %w", productID, errs.ErrNotFound)
			}
			return err
		}

		if quantity.IsNegative() {
			available, err := tx.StockQuantity(ctx, productID)
			if err != nil {
				return err
			}
			if available.Add(quantity).IsNegative() {
				return &errs.InsufficientStockError{
					ProductID: productID,
					Requested: quantity.Neg(),
					Available: available,
				}
			}
		}

		m := &models.StockMovement{
			ProductID: productID,
			Quantity:  quantity,
			Reference: "Adjustment: " + reason,
		}
		if quantity.IsNegative() {
			m.MovementType = models.MovementOut
		} else {
			m.MovementType = models.MovementIn
		}
		if err := tx.AppendMovement(ctx, m); err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("product_id", productID).
		Str("quantity", quantity.String()).
		Str("reason", reason).
		Msg("stock adjusted")
	return movement, nil
}
