// Package model defines the cart types shared by the storefront client,
// the reconciliation core and the drawer service.
package model

// CartSnapshot is a point-in-time read of the remote cart.
// Snapshots are values: fetch a fresh one instead of mutating.
type CartSnapshot struct {
	Token              string              `json:"token,omitempty"`
	Items              []LineItem          `json:"items"`
	ItemCount          int                 `json:"item_count"`
	CartLevelDiscounts []CartLevelDiscount `json:"cart_level_discounts"`
	Currency           string              `json:"currency,omitempty"`
}

// LineItem is one purchasable variant in the cart.
type LineItem struct {
	ID                int64                  `json:"id"` // Variant ID, used to target mutations
	ProductID         int64                  `json:"product_id"`
	Key               string                 `json:"key,omitempty"`
	Title             string                 `json:"title,omitempty"`
	Quantity          int                    `json:"quantity"`
	LinePrice         int64                  `json:"line_price"`
	FinalLinePrice    int64                  `json:"final_line_price"`
	OriginalLinePrice int64                  `json:"original_line_price"`
	VariantOptions    []string               `json:"variant_options,omitempty"`
	SellingPlan       *SellingPlanAllocation `json:"selling_plan_allocation,omitempty"`
}

// SellingPlanAllocation links a line to a subscription plan.
type SellingPlanAllocation struct {
	SellingPlanID  int64 `json:"selling_plan_id"`
	CompareAtPrice int64 `json:"compare_at_price"`
}

// CartLevelDiscount is a discount applied to the whole cart.
type CartLevelDiscount struct {
	Title                string `json:"title,omitempty"`
	TotalAllocatedAmount int64  `json:"total_allocated_amount"`
}

// FindByID returns the line item with the given variant ID.
func (c *CartSnapshot) FindByID(id int64) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return LineItem{}, false
}

// FindByProduct returns the first line item belonging to the given product.
func (c *CartSnapshot) FindByProduct(productID int64) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return LineItem{}, false
}

// QuantityOf returns the quantity of the line with the given variant ID, 0 if absent.
func (c *CartSnapshot) QuantityOf(id int64) int {
	if item, ok := c.FindByID(id); ok {
		return item.Quantity
	}
	return 0
}

// AddItem is one entry of an add-to-cart request.
type AddItem struct {
	ID            int64 `json:"id"`
	Quantity      int   `json:"quantity"`
	SellingPlanID int64 `json:"selling_plan,omitempty"`
}

// ChangeRequest targets a single line for a quantity or selling plan change.
// Quantity nil leaves the quantity untouched.
type ChangeRequest struct {
	ID            int64 `json:"id"`
	Quantity      *int  `json:"quantity,omitempty"`
	SellingPlanID int64 `json:"selling_plan,omitempty"`
}

// Qty is a helper for building ChangeRequest literals.
func Qty(n int) *int {
	return &n
}
