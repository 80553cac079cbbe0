// Package reconcile derives the target state of the cart's auxiliary lines
// (shipping protection, free gift) from a cart snapshot.
// Used by the drawer to compute the delta between the current and desired cart,
// enabling stateless convergence: the caller fetches a fresh snapshot, decides,
// and issues only the necessary mutation.
//
// Everything here is pure. Fetching snapshots, persisting overrides and issuing
// mutations belong to the caller.
package reconcile

import (
	"time"

	"cart-drawer/internal/model"
)

// ProtectionConfig identifies the shipping protection line and its default.
type ProtectionConfig struct {
	LineItemID       int64 // Variant ID of the protection product
	EnabledByDefault bool
}

// Override is the shopper's time-limited opt-out of shipping protection.
type Override struct {
	Value  bool
	Expiry time.Time
}

// ReadOverride applies read-time expiry to a stored override.
// Returns the override when it is set and now is before Expiry, nil otherwise.
// stale reports that a stored record exists but is inert and should be deleted.
func ReadOverride(stored *Override, now time.Time) (active *Override, stale bool) {
	if stored == nil {
		return nil, false
	}
	if stored.Value && now.Before(stored.Expiry) {
		return stored, false
	}
	return nil, true
}

// Reason records which rule produced a protection decision.
type Reason string

const (
	ReasonNotConfigured Reason = "not_configured"
	ReasonEmptyCart     Reason = "empty_cart"
	ReasonOverride      Reason = "override"
	ReasonOnlyItem      Reason = "protection_only"
	ReasonChecked       Reason = "checked"
	ReasonDefault       Reason = "enabled_by_default"
	ReasonUnchecked     Reason = "unchecked"
)

// Decision is the outcome of DecideProtection.
// Applies is false when no decision is made (nothing to protect).
type Decision struct {
	Applies         bool
	LineItemID      int64
	CurrentQuantity int
	TargetQuantity  int
	Reason          Reason
}

// NeedsMutation returns true if the cart must change to reach the target.
func (d Decision) NeedsMutation() bool {
	return d.Applies && d.CurrentQuantity != d.TargetQuantity
}

// DecideProtection computes whether the protection line should be present.
// override must already be expiry-filtered (see ReadOverride).
//
// Rules, first match wins:
//  1. empty cart → no decision
//  2. active override → 0
//  3. nothing but the protection line in the cart → 0
//  4. UI checked or enabled by default → 1
//  5. otherwise → 0
func DecideProtection(cart *model.CartSnapshot, uiChecked bool, cfg ProtectionConfig, override *Override) Decision {
	if cfg.LineItemID == 0 {
		return Decision{Reason: ReasonNotConfigured}
	}
	if cart == nil || cart.ItemCount == 0 {
		return Decision{Reason: ReasonEmptyCart}
	}

	d := Decision{
		Applies:         true,
		LineItemID:      cfg.LineItemID,
		CurrentQuantity: cart.QuantityOf(cfg.LineItemID),
	}

	hasOtherItems := false
	for _, item := range cart.Items {
		if item.ID != cfg.LineItemID {
			hasOtherItems = true
			break
		}
	}

	switch {
	case override != nil && override.Value:
		d.Reason = ReasonOverride
	case !hasOtherItems:
		d.Reason = ReasonOnlyItem
	case uiChecked:
		d.TargetQuantity, d.Reason = 1, ReasonChecked
	case cfg.EnabledByDefault:
		d.TargetQuantity, d.Reason = 1, ReasonDefault
	default:
		d.Reason = ReasonUnchecked
	}

	return d
}
