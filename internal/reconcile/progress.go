package reconcile

import (
	"fmt"

	"cart-drawer/internal/model"
)

// ThresholdKind is the perk a threshold unlocks.
type ThresholdKind string

const (
	KindFreeShipping ThresholdKind = "free-shipping"
	KindGift         ThresholdKind = "gift"
)

// Threshold is one step of the discount progress bar.
// Thresholds are configured in ascending Value order.
type Threshold struct {
	Value         int64         `json:"value"` // Minor units
	Kind          ThresholdKind `json:"type"`
	GiftProductID int64         `json:"gift_product_id,omitempty"`
}

// IsGift reports whether the threshold unlocks the free gift.
func (t Threshold) IsGift() bool {
	return t.Kind == KindGift
}

// ValidateThresholds checks that values are positive and strictly ascending
// and that every gift threshold names its gift product.
func ValidateThresholds(thresholds []Threshold) error {
	var prev int64
	for i, t := range thresholds {
		if t.Value <= prev {
			return fmt.Errorf("threshold %d: values must be positive and strictly ascending", i)
		}
		if t.IsGift() && t.GiftProductID == 0 {
			return fmt.Errorf("threshold %d: gift threshold requires a gift product id", i)
		}
		prev = t.Value
	}
	return nil
}

// ThresholdState pairs a threshold with whether the cart meets it.
type ThresholdState struct {
	Threshold Threshold `json:"threshold"`
	Unlocked  bool      `json:"unlocked"`
}

// ProgressResult is the derived state of the discount progress bar.
type ProgressResult struct {
	TotalPrice  int64            `json:"total_price"` // Clamped at 0
	FillPercent float64          `json:"fill_percent"`
	Thresholds  []ThresholdState `json:"thresholds"`
	Next        *Threshold       `json:"next,omitempty"` // First threshold not yet met

	HasFreeShipping       bool  `json:"has_free_shipping"`
	FreeShippingUnlocked  bool  `json:"free_shipping_unlocked"`
	FreeShippingRemaining int64 `json:"free_shipping_remaining"`

	HasGift       bool  `json:"has_gift"`
	GiftUnlocked  bool  `json:"gift_unlocked"`
	GiftProductID int64 `json:"gift_product_id,omitempty"`
	GiftRemaining int64 `json:"gift_remaining"`
}

// CartTotal sums final line prices minus cart-level discounts. May be negative.
func CartTotal(cart *model.CartSnapshot) int64 {
	if cart == nil {
		return 0
	}
	var total int64
	for _, item := range cart.Items {
		total += item.FinalLinePrice
	}
	for _, d := range cart.CartLevelDiscounts {
		total -= d.TotalAllocatedAmount
	}
	return total
}

// ComputeProgress walks thresholds in order and derives fill and unlock state.
// Each of the N thresholds owns an equal 100/N share of the bar; the share of
// the first unmet threshold fills linearly between the previous value and its own.
//
// When several gift thresholds exist, GiftProductID starts as the last one's
// product and is overwritten by every gift threshold the cart meets.
func ComputeProgress(cart *model.CartSnapshot, thresholds []Threshold) ProgressResult {
	total := CartTotal(cart)
	if total < 0 {
		total = 0
	}

	result := ProgressResult{
		TotalPrice: total,
		Thresholds: make([]ThresholdState, len(thresholds)),
	}
	if len(thresholds) == 0 {
		return result
	}

	for _, t := range thresholds {
		if t.IsGift() {
			result.HasGift = true
			result.GiftProductID = t.GiftProductID
		} else {
			result.HasFreeShipping = true
		}
	}

	step := 100 / float64(len(thresholds))
	var prev int64
	var firstUnmetShipping, firstUnmetGift *Threshold

	for i, t := range thresholds {
		result.Thresholds[i] = ThresholdState{Threshold: t}

		switch {
		case total >= t.Value:
			result.Thresholds[i].Unlocked = true
			result.FillPercent = float64(i+1) * step
			if t.IsGift() {
				result.GiftUnlocked = true
				result.GiftProductID = t.GiftProductID
			} else {
				result.FreeShippingUnlocked = true
			}
		case total > prev:
			span := float64(t.Value - prev)
			result.FillPercent = float64(i)*step + float64(total-prev)/span*step
			fallthrough
		default:
			if result.Next == nil {
				next := t
				result.Next = &next
			}
		}

		if !result.Thresholds[i].Unlocked {
			t := t
			if t.IsGift() && firstUnmetGift == nil {
				firstUnmetGift = &t
			}
			if !t.IsGift() && firstUnmetShipping == nil {
				firstUnmetShipping = &t
			}
		}
		prev = t.Value
	}

	if !result.FreeShippingUnlocked && firstUnmetShipping != nil {
		result.FreeShippingRemaining = firstUnmetShipping.Value - total
	}
	if !result.GiftUnlocked && firstUnmetGift != nil {
		result.GiftRemaining = firstUnmetGift.Value - total
	}

	return result
}

// FreeShippingStatus renders the free shipping status line.
// Empty when no free shipping threshold is configured.
func (p ProgressResult) FreeShippingStatus(currencySymbol string) string {
	if !p.HasFreeShipping {
		return ""
	}
	if p.FreeShippingUnlocked {
		return "You've unlocked Free Shipping!"
	}
	return "You're " + model.FormatCents(currencySymbol, p.FreeShippingRemaining) + " away from Free Shipping!"
}

// GiftStatus renders the gift status line.
// Empty when no gift threshold is configured.
func (p ProgressResult) GiftStatus(currencySymbol string) string {
	if !p.HasGift {
		return ""
	}
	if p.GiftUnlocked {
		return "Free Gift Included!"
	}
	return "Add " + model.FormatCents(currencySymbol, p.GiftRemaining) + " more to unlock Free Gift"
}
