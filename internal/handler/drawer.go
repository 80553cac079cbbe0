package handler

import (
	"context"
	"net/http"
	"strconv"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/model"
)

// === Request Bodies ===

type addItemsRequest struct {
	Items []model.AddItem `json:"items"`
}

type quantityRequest struct {
	Action   drawer.QuantityAction `json:"action"`
	Quantity int                   `json:"quantity"` // Quantity the shopper saw
}

type sellingPlanRequest struct {
	SellingPlan int64 `json:"selling_plan"`
}

type swapRequest struct {
	AddID       int64 `json:"add_id"`
	Quantity    int   `json:"quantity"`
	SellingPlan int64 `json:"selling_plan"`
}

type giftRequest struct {
	VariantID int64 `json:"variant_id"`
}

// drawerOp runs one drawer operation for the request's session.
type drawerOp func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error)

// serve opens the session's drawer, runs op and writes the view.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, requireCart bool, op drawerOp) {
	state, err := sessionState(r, requireCart)
	if err != nil {
		h.writeError(w, err)
		return
	}

	d := h.sessions.Open(state)
	defer d.Close()

	view, err := op(r.Context(), d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeView(w, state, view)
}

// handleGetDrawer rebuilds the drawer.
// GET /drawer
func (h *Handler) handleGetDrawer(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.Rebuild(ctx)
	})
}

// handleToggleProtection flips the protection checkbox.
// POST /drawer/protection/toggle
func (h *Handler) handleToggleProtection(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.ToggleProtection(ctx)
	})
}

// handleDisableProtection unchecks protection and records the opt-out.
// POST /drawer/protection/disable
func (h *Handler) handleDisableProtection(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.DisableProtection(ctx)
	})
}

// handleAddItems adds items to the cart.
// POST /drawer/items
func (h *Handler) handleAddItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.AddItems(ctx, req.Items)
	})
}

// handleChangeQuantity applies a quantity button to a line.
// POST /drawer/items/{id}/quantity
func (h *Handler) handleChangeQuantity(w http.ResponseWriter, r *http.Request) {
	lineID, err := pathLineID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.ChangeQuantity(ctx, lineID, req.Action, req.Quantity)
	})
}

// handleSellingPlan moves a line onto a selling plan.
// POST /drawer/items/{id}/selling-plan
func (h *Handler) handleSellingPlan(w http.ResponseWriter, r *http.Request) {
	lineID, err := pathLineID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req sellingPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.UpgradeSellingPlan(ctx, lineID, req.SellingPlan)
	})
}

// handleSwap replaces a line with its subscription variant.
// POST /drawer/items/{id}/swap
func (h *Handler) handleSwap(w http.ResponseWriter, r *http.Request) {
	lineID, err := pathLineID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req swapRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.SwapVariant(ctx, drawer.SwapRequest{
			RemoveID:      lineID,
			AddID:         req.AddID,
			Quantity:      req.Quantity,
			SellingPlanID: req.SellingPlan,
		})
	})
}

// handleSelectGift adds the gift variant the shopper picked.
// POST /drawer/gift
func (h *Handler) handleSelectGift(w http.ResponseWriter, r *http.Request) {
	var req giftRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.SelectGift(ctx, req.VariantID)
	})
}

// handleClear empties the cart.
// POST /drawer/clear
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.ClearCart(ctx)
	})
}

// pathLineID parses the {id} path segment as a variant ID.
func pathLineID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "must be a positive variant ID")
	}
	return id, nil
}
