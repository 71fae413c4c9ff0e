// Package catalog manages products and the reference data around them.
// Plain CRUD; the one rule it owns is that a product referenced by ledger
// entries or order lines can never be deleted.
package catalog

import (
	"context"
	"fmt"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.SKU == "" || p.Name == "" {
		return &errs.ValidationError{Reason: "product requires sku and name"}
	}
	if p.BuyingPrice.IsNegative() || p.SellingPrice.IsNegative() {
		return &errs.ValidationError{Reason: "prices must not be negative"}
	}
	if p.ReorderLevel < 0 {
		return &errs.ValidationError{Reason: "reorder level must not be negative"}
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Service) UpdateProduct(ctx context.Context, p *models.Product) error {
	if p.BuyingPrice.IsNegative() || p.SellingPrice.IsNegative() {
		return &errs.ValidationError{Reason: "prices must not be negative"}
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"sku":           p.SKU,
			"name":          p.Name,
			"description":   p.Description,
			"category_id":   p.CategoryID,
			"unit_id":       p.UnitID,
			"buying_price":  p.BuyingPrice,
			"selling_price": p.SellingPrice,
			"reorder_level": p.ReorderLevel,
			"is_active":     p.IsActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", p.ID, errs.ErrNotFound)
	}
	return nil
}

func (s *Service) Product(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Preload("Category").Preload("Unit").First(&p, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("product %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Product
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProduct refuses while movements or order lines still reference the
// product; historical ledgers and orders must stay intact. Deactivate
// instead of deleting to retire a product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.StockMovement{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs == 0 {
			if err := tx.Model(&models.OrderLine{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
				return err
			}
		}
		if refs > 0 {
			return fmt.Errorf("product %d is referenced by ledger or order history: %w", id, errs.ErrInvalidState)
		}
		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %d: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}

func (s *Service) CreateSupplier(ctx context.Context, sup *models.Supplier) error {
	if sup.Name == "" {
		return &errs.ValidationError{Reason: "supplier requires a name"}
	}
	return s.db.WithContext(ctx).Create(sup).Error
}

func (s *Service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var out []models.Supplier
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.Name == "" {
		return &errs.ValidationError{Reason: "customer requires a name"}
	}
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Service) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureCustomer resolves the customer profile for an external identity
// subject, creating one on first contact.
func (s *Service) EnsureCustomer(ctx context.Context, subject, name, email string) (*models.Customer, error) {
	if subject == "" {
		return nil, &errs.ValidationError{Reason: "missing identity subject"}
	}
	var c models.Customer
	err := s.db.WithContext(ctx).Where("subject = ?", subject).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	c = models.Customer{Subject: &subject, Name: name, Email: email}
	if c.Name == "" {
		c.Name = subject
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.Name == "" {
		return &errs.ValidationError{Reason: "category requires a name"}
	}
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CreateUnit(ctx context.Context, u *models.Unit) error {
	if u.Name == "" {
		return &errs.ValidationError{Reason: "unit requires a name"}
	}
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Service) ListUnits(ctx context.Context) ([]models.Unit, error) {
	var out []models.Unit
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
