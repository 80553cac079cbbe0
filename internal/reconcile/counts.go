package reconcile

import (
	"math"

	"cart-drawer/internal/model"
)

// DefaultExcludedProductIDs are left out of the true item count.
var DefaultExcludedProductIDs = []int64{10280370667830}

// ItemCounts are the display aggregates shown next to the cart.
type ItemCounts struct {
	Bubble int `json:"bubble"` // Units across all lines
	True   int `json:"true"`   // Paid units, pack sizes expanded, excluded products skipped
}

// CountItems computes the bubble count and the true item count.
// A line's pack size is the leading integer of its first variant option
// ("3 Pack" → 3), defaulting to 1.
func CountItems(cart *model.CartSnapshot, excludedProductIDs []int64) ItemCounts {
	var counts ItemCounts
	if cart == nil {
		return counts
	}

	excluded := make(map[int64]bool, len(excludedProductIDs))
	for _, id := range excludedProductIDs {
		excluded[id] = true
	}

	for _, item := range cart.Items {
		counts.Bubble += item.Quantity
		if excluded[item.ProductID] || item.FinalLinePrice <= 0 {
			continue
		}
		counts.True += packSize(item.VariantOptions) * item.Quantity
	}
	return counts
}

// packSize parses leading digits of the first option.
func packSize(options []string) int {
	if len(options) == 0 {
		return 1
	}
	n := 0
	for _, r := range options[0] {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 1
	}
	return n
}

// LinePrice is the price breakdown shown for one drawer line.
type LinePrice struct {
	LineItemID   int64 `json:"line_item_id"`
	Price        int64 `json:"price"`
	CompareAt    int64 `json:"compare_at"`
	SavedPercent int   `json:"saved_percent"`
}

// PriceLine computes the displayed price, compare-at price and savings of a line.
// A selling plan compare-at price (per unit) replaces the original line price
// when it is larger.
func PriceLine(item model.LineItem) LinePrice {
	lp := LinePrice{
		LineItemID: item.ID,
		Price:      item.LinePrice,
		CompareAt:  item.OriginalLinePrice,
	}
	if item.SellingPlan != nil {
		if planCompare := item.SellingPlan.CompareAtPrice * int64(item.Quantity); planCompare > lp.CompareAt {
			lp.CompareAt = planCompare
		}
	}
	if lp.CompareAt > 0 {
		saved := float64(lp.CompareAt-lp.Price) * 100 / float64(lp.CompareAt)
		lp.SavedPercent = int(math.Round(saved))
	}
	return lp
}
