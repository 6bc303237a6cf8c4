package models

import (
	"time"

	"github.com/fatflowers/creator-cashier/pkg/types"
)

type Shoutout struct {
	ID         string                  `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	CustomerID string                  `gorm:"column:customer_id;type:varchar(36);not null;index" json:"customer_id"`
	OrderID    string                  `gorm:"column:order_id;type:varchar(36);not null;index" json:"order_id"`
	Platform   string                  `gorm:"column:platform;type:varchar(64);not null" json:"platform"`
	Username   string                  `gorm:"column:username;type:varchar(255);not null" json:"username"`
	Status     types.FulfillmentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func (Shoutout) TableName() string { return "shoutout" }

// LiveReview can exist before payment (submission first, pay later), in which
// case OrderID is nil until a matching order links it.
type LiveReview struct {
	ID            string                  `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	CustomerID    string                  `gorm:"column:customer_id;type:varchar(36);not null;index" json:"customer_id"`
	OrderID       *string                 `gorm:"column:order_id;type:varchar(36);index" json:"order_id"`
	SubmissionURL string                  `gorm:"column:submission_url;type:varchar(1024)" json:"submission_url"`
	Status        types.FulfillmentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func (LiveReview) TableName() string { return "live_review" }
