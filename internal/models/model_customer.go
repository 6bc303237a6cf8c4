package models

import "time"

// Customer is identified by email. Rows with orders or ledger history are
// never hard-deleted; Active is cleared instead.
type Customer struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Email     string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name      string    `gorm:"column:name;type:varchar(255)" json:"name"`
	Phone     string    `gorm:"column:phone;type:varchar(64)" json:"phone"`
	Notes     string    `gorm:"column:notes;type:text" json:"notes"`
	Active    bool      `gorm:"column:active;not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customer" }
