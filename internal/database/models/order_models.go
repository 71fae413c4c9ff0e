package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderKindPurchase = "PURCHASE"
	OrderKindSale     = "SALE"

	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"

	ChannelPOS = "POS"
	ChannelWeb = "WEB"
)

// Order is the shared header for purchases and sales. Status and Channel are
// meaningful for sales only; purchases are always COMPLETED. Total is always
// recomputed from the lines inside the creating transaction, never taken
// from caller input.
type Order struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Kind       string `gorm:"size:10;index;not null"`
	SupplierID *int64
	CustomerID *int64
	OrderDate  time.Time       `gorm:"not null"`
	Total      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status     string          `gorm:"size:20;index;not null"`
	Channel    string          `gorm:"size:10;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Supplier *Supplier        `gorm:"foreignKey:SupplierID"`
	Customer *Customer        `gorm:"foreignKey:CustomerID"`
	Lines    []OrderLine      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments []PaymentAttempt `gorm:"foreignKey:OrderID"`
}

type OrderLine struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"index;not null"`
	ProductID int64           `gorm:"not null"`
	Quantity  decimal.Decimal `gorm:"type:numeric(12,3);not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

// PaymentAttempt records one push-payment request against an order. The
// provider's checkout request id is globally unique and is the idempotency
// key for callback matching. Attempts are never deleted; the callback
// handler is the only writer after creation.
type PaymentAttempt struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	OrderID           int64           `gorm:"index;not null"`
	MerchantRequestID string          `gorm:"size:100;not null"`
	CheckoutRequestID string          `gorm:"size:100;uniqueIndex;not null"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Phone             string          `gorm:"size:15;not null"`
	Status            string          `gorm:"size:20;not null;default:PENDING"`
	CreatedAt         time.Time

	Order *Order `gorm:"foreignKey:OrderID"`
}
