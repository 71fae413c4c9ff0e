// Package cart keeps the storefront cart as an explicit value object in
// Redis, keyed by the customer's identity. Carts are working state, not
// orders: nothing here touches stock or the ledger.
package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const cartTTL = 7 * 24 * time.Hour

type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Cart struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type Service struct {
	rdb *redis.Client
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(rdb *redis.Client, db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{rdb: rdb, db: db, log: log}
}

func cartKey(customerID int64) string {
	return fmt.Sprintf("cart:%d", customerID)
}

// Add increments the quantity for a product. The stock check here is a
// courtesy only; checkout re-validates under the order engine's lock.
func (s *Service) Add(ctx context.Context, customerID, productID int64, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return &errs.ValidationError{Reason: "quantity must be positive"}
	}
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, productID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("product %d: %w", productID, errs.ErrNotFound)
		}
		return err
	}
	if !p.IsActive {
		return &errs.ValidationError{Reason: fmt.Sprintf("product %q is not available", p.Name)}
	}

	key := cartKey(customerID)
	field := strconv.FormatInt(productID, 10)
	if err := s.rdb.HIncrByFloat(ctx, key, field, quantity.InexactFloat64()).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, cartTTL).Err()
}

func (s *Service) Remove(ctx context.Context, customerID, productID int64) error {
	return s.rdb.HDel(ctx, cartKey(customerID), strconv.FormatInt(productID, 10)).Err()
}

func (s *Service) Clear(ctx context.Context, customerID int64) error {
	return s.rdb.Del(ctx, cartKey(customerID)).Err()
}

// Contents returns the raw productID -> quantity map, for checkout.
func (s *Service) Contents(ctx context.Context, customerID int64) (map[int64]decimal.Decimal, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(customerID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal, len(raw))
	for field, val := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(val)
		if err != nil || !qty.IsPositive() {
			continue
		}
		out[id] = qty
	}
	return out, nil
}

// Get prices the cart at current selling prices. Items whose product has
// disappeared or been deactivated are dropped from the view.
func (s *Service) Get(ctx context.Context, customerID int64) (*Cart, error) {
	contents, err := s.Contents(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return &Cart{Items: []Item{}, Total: decimal.Zero}, nil
	}

	ids := make([]int64, 0, len(contents))
	for id := range contents {
		ids = append(ids, id)
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&products).Error; err != nil {
		return nil, err
	}

	return PriceCart(contents, products), nil
}

// PriceCart computes line totals and the cart total with exact decimals.
func PriceCart(contents map[int64]decimal.Decimal, products []models.Product) *Cart {
	c := &Cart{Items: []Item{}, Total: decimal.Zero}
	for _, p := range products {
		qty, ok := contents[p.ID]
		if !ok {
			continue
		}
		line := Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.SellingPrice,
			LineTotal: qty.Mul(p.SellingPrice),
		}
		c.Items = append(c.Items, line)
		c.Total = c.Total.Add(line.LineTotal)
	}
	return c
}
