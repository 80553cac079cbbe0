package drawer

import (
	"context"
	"fmt"
	"log/slog"

	"cart-drawer/internal/model"
)

// QuantityAction is a quantity button in the drawer.
type QuantityAction string

const (
	ActionPlus   QuantityAction = "plus"
	ActionMinus  QuantityAction = "minus"
	ActionRemove QuantityAction = "remove"
)

// Apply returns the quantity after the action.
func (a QuantityAction) Apply(current int) (int, error) {
	switch a {
	case ActionPlus:
		return current + 1, nil
	case ActionMinus:
		return max(current-1, 0), nil
	case ActionRemove:
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown quantity action %q", a)
	}
}

// SwapRequest replaces a one-time line with its subscription variant.
type SwapRequest struct {
	RemoveID      int64 `json:"remove_id"`
	AddID         int64 `json:"add_id"`
	Quantity      int   `json:"quantity"`
	SellingPlanID int64 `json:"selling_plan"`
}

// AddItems adds items to the cart, then rebuilds.
func (d *Drawer) AddItems(ctx context.Context, items []model.AddItem) (*View, error) {
	if len(items) == 0 {
		return nil, model.WithAlert(model.NewValidationError("items", "at least one item required"), AlertAddItems)
	}
	_, err := d.cart.AddItems(ctx, items)
	d.metrics.mutation(kindAdd, err)
	if err != nil {
		d.logger.ErrorContext(ctx, "adding items failed",
			slog.Int("items", len(items)),
			slog.String("error", err.Error()))
		return nil, model.WithAlert(err, AlertAddItems)
	}
	return d.Rebuild(ctx)
}

// ChangeQuantity applies a quantity button to the line with the given variant
// ID, current being the quantity the shopper saw, then rebuilds.
func (d *Drawer) ChangeQuantity(ctx context.Context, lineID int64, action QuantityAction, current int) (*View, error) {
	qty, err := action.Apply(current)
	if err != nil {
		return nil, model.WithAlert(model.NewValidationError("action", err.Error()), AlertUpdateCart)
	}
	return d.change(ctx, model.ChangeRequest{ID: lineID, Quantity: model.Qty(qty)})
}

// UpgradeSellingPlan moves a line onto a subscription plan, then rebuilds.
func (d *Drawer) UpgradeSellingPlan(ctx context.Context, lineID, planID int64) (*View, error) {
	if planID == 0 {
		return nil, model.WithAlert(model.NewValidationError("selling_plan", "required"), AlertUpdateCart)
	}
	return d.change(ctx, model.ChangeRequest{ID: lineID, SellingPlanID: planID})
}

func (d *Drawer) change(ctx context.Context, req model.ChangeRequest) (*View, error) {
	_, err := d.cart.ChangeItem(ctx, req)
	d.metrics.mutation(kindChange, err)
	if err != nil {
		d.logger.ErrorContext(ctx, "changing cart line failed",
			slog.Int64("line_item_id", req.ID),
			slog.String("error", err.Error()))
		return nil, model.WithAlert(err, AlertUpdateCart)
	}
	return d.Rebuild(ctx)
}

// SwapVariant removes req.RemoveID and puts req.Quantity of req.AddID on the
// selling plan. An existing AddID line on the same plan (or on none) is
// resized instead of adding a second line.
func (d *Drawer) SwapVariant(ctx context.Context, req SwapRequest) (*View, error) {
	if req.RemoveID == 0 || req.AddID == 0 || req.Quantity <= 0 {
		return nil, model.WithAlert(model.NewValidationError("swap", "remove_id, add_id and a positive quantity are required"), AlertUpdateCart)
	}

	err := d.swap(ctx, req)
	d.metrics.mutation(kindSwap, err)
	if err != nil {
		d.logger.ErrorContext(ctx, "subscription swap failed",
			slog.Int64("remove_id", req.RemoveID),
			slog.Int64("add_id", req.AddID),
			slog.String("error", err.Error()))
		return nil, model.WithAlert(err, AlertUpdateCart)
	}
	return d.Rebuild(ctx)
}

func (d *Drawer) swap(ctx context.Context, req SwapRequest) error {
	if _, err := d.cart.ChangeItem(ctx, model.ChangeRequest{ID: req.RemoveID, Quantity: model.Qty(0)}); err != nil {
		return fmt.Errorf("removing line %d: %w", req.RemoveID, err)
	}

	// Direct read: the removal must be visible
	snap, err := d.cart.GetCart(ctx)
	if err != nil {
		return fmt.Errorf("reading cart after removal: %w", err)
	}

	existing := false
	for _, item := range snap.Items {
		if item.ID == req.AddID && (item.SellingPlan == nil || item.SellingPlan.SellingPlanID == req.SellingPlanID) {
			existing = true
			break
		}
	}

	if existing {
		_, err = d.cart.ChangeItem(ctx, model.ChangeRequest{ID: req.AddID, Quantity: model.Qty(req.Quantity), SellingPlanID: req.SellingPlanID})
	} else {
		_, err = d.cart.AddItems(ctx, []model.AddItem{{ID: req.AddID, Quantity: req.Quantity, SellingPlanID: req.SellingPlanID}})
	}
	if err != nil {
		return fmt.Errorf("adding line %d: %w", req.AddID, err)
	}
	return nil
}

// ClearCart empties the cart, then rebuilds.
func (d *Drawer) ClearCart(ctx context.Context) (*View, error) {
	_, err := d.cart.Clear(ctx)
	d.metrics.mutation(kindClear, err)
	if err != nil {
		d.logger.ErrorContext(ctx, "clearing cart failed", slog.String("error", err.Error()))
		return nil, model.WithAlert(err, AlertUpdateCart)
	}
	return d.Rebuild(ctx)
}
