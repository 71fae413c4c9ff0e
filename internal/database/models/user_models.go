package models

import "time"

// Customer profiles belong to this system; authentication does not. Subject
// holds the identity provider's subject for customers who log in online;
// walk-in POS customers have none.
type Customer struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Subject   *string `gorm:"size:255;uniqueIndex"`
	Name      string  `gorm:"size:255;not null"`
	Phone     string  `gorm:"size:100"`
	Email     string  `gorm:"size:100"`
	Address   string  `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
