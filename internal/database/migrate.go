package database

import (
	"agropos-system/internal/database/models"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Unit{},
		&models.Category{},
		&models.Supplier{},
		&models.Customer{},
		&models.Product{},
		&models.StockMovement{},
		&models.Order{},
		&models.OrderLine{},
		&models.PaymentAttempt{},
	)
}
