package reconcile

import "cart-drawer/internal/model"

// GiftAction is what the drawer must do about the free gift line.
type GiftAction string

const (
	GiftNone GiftAction = "none"
	// GiftNeedsSelection: unlocked but not in the cart. The shopper has to pick
	// a variant (size, color) before anything can be added, so nothing is auto-added.
	GiftNeedsSelection GiftAction = "needs_selection"
	// GiftRemove: in the cart while its threshold is no longer met.
	GiftRemove GiftAction = "remove"
)

// GiftPlan is the outcome of PlanGift.
type GiftPlan struct {
	Action        GiftAction      `json:"action"`
	GiftProductID int64           `json:"gift_product_id,omitempty"`
	Line          *model.LineItem `json:"line,omitempty"` // Gift line in the cart, if any
}

// PlanGift reconciles the gift line against the unlock state in progress.
// No gift threshold configured means GiftNone.
func PlanGift(cart *model.CartSnapshot, progress ProgressResult) GiftPlan {
	plan := GiftPlan{Action: GiftNone, GiftProductID: progress.GiftProductID}
	if !progress.HasGift || cart == nil {
		return plan
	}

	line, inCart := cart.FindByProduct(progress.GiftProductID)
	if inCart {
		plan.Line = &line
	}

	switch {
	case progress.GiftUnlocked && !inCart:
		plan.Action = GiftNeedsSelection
	case !progress.GiftUnlocked && inCart:
		plan.Action = GiftRemove
	}
	return plan
}
