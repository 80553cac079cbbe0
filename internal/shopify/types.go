// Package shopify is a client for the storefront Ajax Cart API
// (/cart.js, /cart/add.js, /cart/change.js, /cart/update.js, /cart/clear.js).
// Wire types mirror the storefront JSON; transform.go converts them to model types.
package shopify

// === Ajax Cart API Response Types ===

// CartResponse is the body of GET /cart.js and of the change/update/clear endpoints.
type CartResponse struct {
	Token              string                `json:"token"`
	ItemCount          int                   `json:"item_count"`
	Items              []LineItem            `json:"items"`
	TotalPrice         int64                 `json:"total_price"` // Cents
	Currency           string                `json:"currency"`
	CartLevelDiscounts []DiscountApplication `json:"cart_level_discount_applications"`
	RequiresShipping   bool                  `json:"requires_shipping"`
	OriginalTotalPrice int64                 `json:"original_total_price"`
	TotalDiscount      int64                 `json:"total_discount"`
	ItemsSubtotalPrice int64                 `json:"items_subtotal_price"`
}

// LineItem is one entry of a cart's items array.
type LineItem struct {
	ID                    int64                  `json:"id"` // Variant ID
	ProductID             int64                  `json:"product_id"`
	VariantID             int64                  `json:"variant_id"`
	Key                   string                 `json:"key"`
	Title                 string                 `json:"title"`
	ProductTitle          string                 `json:"product_title"`
	Handle                string                 `json:"handle"`
	Quantity              int                    `json:"quantity"`
	Price                 int64                  `json:"price"`
	LinePrice             int64                  `json:"line_price"`
	FinalLinePrice        int64                  `json:"final_line_price"`
	OriginalLinePrice     int64                  `json:"original_line_price"`
	VariantOptions        []string               `json:"variant_options"`
	RequiresShipping      bool                   `json:"requires_shipping"`
	SellingPlanAllocation *SellingPlanAllocation `json:"selling_plan_allocation,omitempty"`
}

// SellingPlanAllocation describes the subscription plan a line is bought on.
type SellingPlanAllocation struct {
	Price          int64       `json:"price"`
	CompareAtPrice int64       `json:"compare_at_price"`
	SellingPlan    SellingPlan `json:"selling_plan"`
}

// SellingPlan identifies a subscription plan.
type SellingPlan struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DiscountApplication is a cart-level discount.
type DiscountApplication struct {
	Title                string `json:"title"`
	TotalAllocatedAmount int64  `json:"total_allocated_amount"`
}

// AddResponse is the body of POST /cart/add.js: the lines that were added.
type AddResponse struct {
	Items []LineItem `json:"items"`
}

// ErrorResponse is the error body of the Ajax Cart API.
type ErrorResponse struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// === Ajax Cart API Request Types ===

// AddRequest is the body of POST /cart/add.js.
type AddRequest struct {
	Items []AddItem `json:"items"`
}

// AddItem is one entry of an add request.
type AddItem struct {
	ID          int64 `json:"id"`
	Quantity    int   `json:"quantity"`
	SellingPlan int64 `json:"selling_plan,omitempty"`
}

// ChangeRequest is the body of POST /cart/change.js.
type ChangeRequest struct {
	ID          int64 `json:"id"`
	Quantity    *int  `json:"quantity,omitempty"`
	SellingPlan int64 `json:"selling_plan,omitempty"`
}

// UpdateRequest is the body of POST /cart/update.js, keyed by variant ID.
type UpdateRequest struct {
	Updates map[string]int `json:"updates"`
}
