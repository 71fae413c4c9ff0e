package repository

import (
	"context"
	"time"

	"agropos-system/internal/database/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductStock pairs a product with its derived stock quantity.
type ProductStock struct {
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	ReorderLevel int32           `json:"reorder_level"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	Kind       string
	Channel    string
	Status     string
	CustomerID int64
	Limit      int
	Offset     int
}

// Store is the persistence boundary shared by the order engine, the payment
// reconciler and the reporting layer. Atomic runs fn inside one database
// transaction; the Store handed to fn is bound to that transaction, and the
// Lock* methods are only meaningful there. There is deliberately no update
// or delete operation for stock movements.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error

	ProductByID(ctx context.Context, id int64) (*models.Product, error)
	LockProduct(ctx context.Context, id int64) (*models.Product, error)

	StockQuantity(ctx context.Context, productID int64) (decimal.Decimal, error)
	AppendMovement(ctx context.Context, m *models.StockMovement) error
	Movements(ctx context.Context, productID int64, limit, offset int) ([]models.StockMovement, error)
	LowStock(ctx context.Context) ([]ProductStock, error)

	CreateOrder(ctx context.Context, o *models.Order) error
	CreateOrderLine(ctx context.Context, l *models.OrderLine) error
	UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)

	CreatePaymentAttempt(ctx context.Context, a *models.PaymentAttempt) error
	LockPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error)
	UpdatePaymentStatus(ctx context.Context, attemptID int64, status string) error

	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	CountPendingWebOrders(ctx context.Context) (int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// LockProduct takes a row lock on the product. The lock serializes every
// check-then-append sequence touching the same product, so a concurrent
// sale cannot read the stock sum until this transaction commits.
func (s *gormStore) LockProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *gormStore) StockQuantity(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	row := s.db.WithContext(ctx).
		Raw("SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id = ?", productID).
		Row()
	if err := row.Scan(&qty); err != nil {
		return decimal.Zero, err
	}
	return qty, nil
}

func (s *gormStore) AppendMovement(ctx context.Context, m *models.StockMovement) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *gormStore) Movements(ctx context.Context, productID int64, limit, offset int) ([]models.StockMovement, error) {
	q := s.db.WithContext(ctx).Model(&models.StockMovement{}).Order("created_at DESC, id DESC")
	if productID != 0 {
		q = q.Where("product_id = ?", productID)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var out []models.StockMovement
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) LowStock(ctx context.Context) ([]ProductStock, error) {
	var out []ProductStock
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.id AS product_id, p.sku, p.name, p.reorder_level,
		       COALESCE(SUM(m.quantity), 0) AS quantity
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id
		WHERE p.is_active = true
		GROUP BY p.id, p.sku, p.name, p.reorder_level
		HAVING COALESCE(SUM(m.quantity), 0) <= p.reorder_level
		ORDER BY quantity ASC`).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *gormStore) CreateOrderLine(ctx context.Context, l *models.OrderLine) error {
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *gormStore) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	return s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total", total).Error
}

func (s *gormStore) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.Product").
		Preload("Payments").
		First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *gormStore) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *gormStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	return s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (s *gormStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).
		Preload("Lines").
		Order("order_date DESC, id DESC")
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Channel != "" {
		q = q.Where("channel = ?", f.Channel)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var out []models.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) CreatePaymentAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// LockPaymentByCheckoutID locks the attempt row so that duplicate callback
// deliveries for the same checkout request id apply exactly once.
func (s *gormStore) LockPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.PaymentAttempt, error) {
	var a models.PaymentAttempt
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *gormStore) UpdatePaymentStatus(ctx context.Context, attemptID int64, status string) error {
	return s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ?", attemptID).
		Update("status", status).Error
}

func (s *gormStore) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := s.db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(total), 0) FROM orders
		     WHERE kind = ? AND status = ? AND order_date >= ? AND order_date < ?`,
			models.OrderKindSale, models.StatusCompleted, from, to).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *gormStore) CountPendingWebOrders(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("kind = ? AND channel = ? AND status = ?",
			models.OrderKindSale, models.ChannelWeb, models.StatusPending).
		Count(&n).Error
	return n, err
}
