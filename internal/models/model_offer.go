package models

import (
	"time"

	"github.com/fatflowers/creator-cashier/pkg/types"
)

// Offer is a catalog entry. Historical orders keep their own unit price
// snapshot, so price edits here never rewrite history.
type Offer struct {
	ID               string              `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	SKU              string              `gorm:"column:sku;type:varchar(128);not null;uniqueIndex" json:"sku"`
	Name             string              `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Category         types.OfferCategory `gorm:"column:category;type:varchar(64);not null" json:"category"`
	PriceCents       int64               `gorm:"column:price_cents;type:bigint;not null" json:"price_cents"`
	IsSubscription   bool                `gorm:"column:is_subscription;not null" json:"is_subscription"`
	CreditsValue     int64               `gorm:"column:credits_value;type:bigint;not null" json:"credits_value"`
	IsCreditEligible bool                `gorm:"column:is_credit_eligible;not null" json:"is_credit_eligible"`
	Active           bool                `gorm:"column:active;not null" json:"active"`
	DisplayOrder     int                 `gorm:"column:display_order;not null;default:0" json:"display_order"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (Offer) TableName() string { return "offer" }

// CreditsFor returns the credits granted for qty units of this offer.
func (o *Offer) CreditsFor(qty int) int64 {
	if o == nil || !o.IsCreditEligible || o.CreditsValue <= 0 || qty <= 0 {
		return 0
	}
	return o.CreditsValue * int64(qty)
}

func (o *Offer) IsLiveReview() bool {
	return o != nil && (o.Category == types.OfferCategoryLiveReview || types.LooksLikeLiveReview(o.Name))
}

func (o *Offer) IsShoutout() bool {
	return o != nil && (o.Category == types.OfferCategoryShoutout || types.LooksLikeShoutout(o.Name))
}
