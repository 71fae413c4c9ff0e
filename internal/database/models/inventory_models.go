package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Unit struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:50;not null"`
	Abbreviation string `gorm:"size:10"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Category struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:100;not null"`
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time

	Parent   *Category  `gorm:"foreignKey:ParentID"`
	Children []Category `gorm:"foreignKey:ParentID"`
}

type Product struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	SKU          string `gorm:"size:64;uniqueIndex;not null"`
	Name         string `gorm:"size:255;not null"`
	Description  string `gorm:"type:text"`
	CategoryID   *int64
	UnitID       *int64
	BuyingPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	SellingPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ReorderLevel int32           `gorm:"not null;default:5"`
	IsActive     bool            `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
	Unit     *Unit     `gorm:"foreignKey:UnitID"`
}

type Supplier struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:255;not null"`
	Phone     string `gorm:"size:100"`
	Email     string `gorm:"size:100"`
	Address   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	MovementIn  = "IN"
	MovementOut = "OUT"
)

// StockMovement is one immutable signed ledger entry. Direction is carried
// in the sign of Quantity; MovementType is an audit tag. Rows are append-only:
// corrections are compensating entries, never edits.
type StockMovement struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	ProductID    int64           `gorm:"index;not null"`
	Quantity     decimal.Decimal `gorm:"type:numeric(12,3);not null"`
	MovementType string          `gorm:"size:3;not null"`
	Reference    string          `gorm:"size:255"`
	CreatedAt    time.Time

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}
