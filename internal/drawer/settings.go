package drawer

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"cart-drawer/internal/markup"
	"cart-drawer/internal/reconcile"
)

// Settings is the static drawer configuration, read once at startup.
type Settings struct {
	Protection         reconcile.ProtectionConfig
	Thresholds         []reconcile.Threshold
	ProgressBarEnabled bool
	ExcludedProductIDs []int64
	CurrencySymbol     string
	PagePath           string // Page re-fetched to render the drawer fragment
	FragmentID         string
	ReservationMinutes int
}

// withDefaults fills unset fields.
func (s Settings) withDefaults() Settings {
	if s.PagePath == "" {
		s.PagePath = "/"
	}
	if s.FragmentID == "" {
		s.FragmentID = markup.DefaultFragmentID
	}
	if s.CurrencySymbol == "" {
		s.CurrencySymbol = "$"
	}
	if s.ExcludedProductIDs == nil {
		s.ExcludedProductIDs = reconcile.DefaultExcludedProductIDs
	}
	return s
}

// Reservation returns how long the cart is held after a rebuild, 0 when disabled.
func (s Settings) Reservation() time.Duration {
	return time.Duration(s.ReservationMinutes) * time.Minute
}

// MergeMarkup fills settings the operator left unset from page markup.
// Markup thresholds are taken in value order, not document order, and must
// pass ValidateThresholds like configured ones.
func (s Settings) MergeMarkup(m markup.Settings) (Settings, error) {
	if s.Protection.LineItemID == 0 {
		s.Protection = m.Protection
	}
	if len(s.Thresholds) == 0 && len(m.Thresholds) > 0 {
		thresholds := slices.Clone(m.Thresholds)
		slices.SortStableFunc(thresholds, func(a, b reconcile.Threshold) int {
			return cmp.Compare(a.Value, b.Value)
		})
		if err := reconcile.ValidateThresholds(thresholds); err != nil {
			return s, fmt.Errorf("markup discount thresholds: %w", err)
		}
		s.Thresholds = thresholds
		s.ProgressBarEnabled = true
	}
	if s.ReservationMinutes == 0 {
		s.ReservationMinutes = m.ReservationMinutes
	}
	if s.CurrencySymbol == "" {
		s.CurrencySymbol = m.CurrencySymbol
	}
	return s, nil
}
