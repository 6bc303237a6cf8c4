package types

import "strings"

type OfferCategory string

const (
	OfferCategoryGeneral           OfferCategory = "general"
	OfferCategoryEventCredits      OfferCategory = "event_credits"
	OfferCategorySubscription      OfferCategory = "subscription"
	OfferCategoryContentManagement OfferCategory = "content_management"
	OfferCategoryLiveReview        OfferCategory = "live_review"
	OfferCategoryShoutout          OfferCategory = "shoutout"
)

// OfferSeed is a catalog entry declared in configuration and upserted at startup.
type OfferSeed struct {
	SKU              string        `json:"sku" mapstructure:"sku"`
	Name             string        `json:"name" mapstructure:"name"`
	Category         OfferCategory `json:"category" mapstructure:"category"`
	PriceCents       int64         `json:"price_cents" mapstructure:"price_cents"`
	IsSubscription   bool          `json:"is_subscription" mapstructure:"is_subscription"`
	CreditsValue     int64         `json:"credits_value" mapstructure:"credits_value"`
	IsCreditEligible bool          `json:"is_credit_eligible" mapstructure:"is_credit_eligible"`
	DisplayOrder     int           `json:"display_order" mapstructure:"display_order"`
}

var (
	liveReviewKeywords = []string{"live review", "live-review", "music submission"}
	shoutoutKeywords   = []string{"shoutout", "shout-out", "shout out"}
)

// LooksLikeLiveReview matches legacy catalog names that predate the category column.
func LooksLikeLiveReview(name string) bool {
	return containsAny(name, liveReviewKeywords)
}

func LooksLikeShoutout(name string) bool {
	return containsAny(name, shoutoutKeywords)
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
