package drawer

import (
	"context"
	"log/slog"

	"cart-drawer/internal/model"
	"cart-drawer/internal/reconcile"
)

// ReconcileGift removes the gift line when its threshold is no longer met.
// An unlocked gift that is not in the cart is left for the shopper to pick
// (GiftNeedsSelection); nothing is added automatically.
func (d *Drawer) ReconcileGift(ctx context.Context, snap *model.CartSnapshot, policy RebuildPolicy) (reconcile.GiftPlan, bool) {
	progress := reconcile.ComputeProgress(snap, d.settings.Thresholds)
	return d.reconcileGift(ctx, snap, progress, policy)
}

func (d *Drawer) reconcileGift(ctx context.Context, snap *model.CartSnapshot, progress reconcile.ProgressResult, policy RebuildPolicy) (reconcile.GiftPlan, bool) {
	plan := reconcile.PlanGift(snap, progress)
	if plan.Action != reconcile.GiftRemove {
		return plan, false
	}

	_, err := d.cart.ChangeItem(ctx, model.ChangeRequest{ID: plan.Line.ID, Quantity: model.Qty(0)})
	d.metrics.mutation(kindGift, err)
	if err != nil {
		d.logger.WarnContext(ctx, "gift removal failed",
			slog.Int64("line_item_id", plan.Line.ID),
			slog.String("error", err.Error()))
		return plan, false
	}
	d.logger.InfoContext(ctx, "removed gift",
		slog.Int64("product_id", plan.GiftProductID),
		slog.Int64("total_price", progress.TotalPrice))

	if policy == TriggerRebuild {
		if _, err := d.Rebuild(ctx); err != nil {
			d.logger.WarnContext(ctx, "rebuild after gift removal failed", slog.String("error", err.Error()))
		}
	}
	return plan, true
}

// SelectGift adds the gift variant the shopper picked, then rebuilds.
func (d *Drawer) SelectGift(ctx context.Context, variantID int64) (*View, error) {
	if variantID == 0 {
		return nil, model.WithAlert(model.NewValidationError("variant_id", "required"), AlertAddGift)
	}
	_, err := d.cart.AddItems(ctx, []model.AddItem{{ID: variantID, Quantity: 1}})
	d.metrics.mutation(kindGift, err)
	if err != nil {
		d.logger.ErrorContext(ctx, "adding gift failed",
			slog.Int64("variant_id", variantID),
			slog.String("error", err.Error()))
		return nil, model.WithAlert(err, AlertAddGift)
	}
	return d.Rebuild(ctx)
}
