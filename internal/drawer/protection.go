package drawer

import (
	"context"
	"log/slog"

	"cart-drawer/internal/model"
	"cart-drawer/internal/reconcile"
)

// ReconcileProtection converges the shipping protection line for snap, issuing
// at most one mutation. It reports the decision and whether the cart was changed.
// Mutation failures are logged and not retried; the next pass corrects them.
func (d *Drawer) ReconcileProtection(ctx context.Context, snap *model.CartSnapshot, policy RebuildPolicy) (reconcile.Decision, bool) {
	return d.reconcileProtection(ctx, snap, d.activeOverride(ctx), policy)
}

func (d *Drawer) reconcileProtection(ctx context.Context, snap *model.CartSnapshot, override *reconcile.Override, policy RebuildPolicy) (reconcile.Decision, bool) {
	decision := reconcile.DecideProtection(snap, d.Checked(), d.settings.Protection, override)
	d.metrics.Decisions.WithLabelValues(string(decision.Reason)).Inc()

	if !decision.NeedsMutation() {
		return decision, false
	}

	_, err := d.cart.UpdateQuantities(ctx, map[int64]int{decision.LineItemID: decision.TargetQuantity})
	d.metrics.mutation(kindProtection, err)
	if err != nil {
		d.logger.WarnContext(ctx, "shipping protection update failed",
			slog.Int64("line_item_id", decision.LineItemID),
			slog.Int("target_quantity", decision.TargetQuantity),
			slog.String("error", err.Error()))
		return decision, false
	}

	msg := "removed shipping protection"
	if decision.TargetQuantity > 0 {
		msg = "added shipping protection"
	}
	d.logger.InfoContext(ctx, msg,
		slog.Int64("line_item_id", decision.LineItemID),
		slog.String("reason", string(decision.Reason)))

	if policy == TriggerRebuild {
		if _, err := d.Rebuild(ctx); err != nil {
			d.logger.WarnContext(ctx, "rebuild after protection update failed", slog.String("error", err.Error()))
		}
	}
	return decision, true
}

// ToggleProtection flips the protection checkbox. Unchecking records an
// opt-out for storage.OverrideTTL; checking removes it.
func (d *Drawer) ToggleProtection(ctx context.Context) (*View, error) {
	return d.setProtection(ctx, !d.Checked())
}

// DisableProtection unchecks protection and records the opt-out.
// Used by the cart page's remove button on the protection line.
func (d *Drawer) DisableProtection(ctx context.Context) (*View, error) {
	return d.setProtection(ctx, false)
}

func (d *Drawer) setProtection(ctx context.Context, checked bool) (*View, error) {
	d.setChecked(checked)

	var err error
	if checked {
		err = d.overrides.Enable(ctx)
	} else {
		err = d.overrides.Disable(ctx)
	}
	if err != nil {
		return nil, model.WithAlert(err, AlertUpdateCart)
	}
	d.logger.InfoContext(ctx, "shipping protection toggled", slog.Bool("checked", checked))

	snap, err := d.fetchCart(ctx)
	if err != nil {
		return nil, err
	}
	if _, mutated := d.ReconcileProtection(ctx, snap, TriggerRebuild); mutated {
		return d.View(), nil
	}
	return d.Rebuild(ctx)
}
