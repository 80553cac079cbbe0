package drawer

import (
	"time"

	"cart-drawer/internal/model"
	"cart-drawer/internal/reconcile"
)

// View is everything the drawer displays after a rebuild.
type View struct {
	CartToken          string                    `json:"cart_token,omitempty"`
	DrawerHTML         string                    `json:"drawer_html"`
	Cart               *model.CartSnapshot       `json:"cart"`
	Counts             reconcile.ItemCounts      `json:"counts"`
	Lines              []LineView                `json:"lines"`
	Protection         ProtectionState           `json:"protection"`
	Progress           *reconcile.ProgressResult `json:"progress,omitempty"`
	FreeShippingStatus string                    `json:"free_shipping_status,omitempty"`
	GiftStatus         string                    `json:"gift_status,omitempty"`
	Gift               *reconcile.GiftPlan       `json:"gift,omitempty"`
	ReservationSeconds int                       `json:"reservation_seconds,omitempty"`
}

// LineView is one line's display prices.
type LineView struct {
	Title         string              `json:"title"`
	Quantity      int                 `json:"quantity"`
	Prices        reconcile.LinePrice `json:"prices"`
	PriceText     string              `json:"price_text"`
	CompareAtText string              `json:"compare_at_text,omitempty"`
	SellingPlanID int64               `json:"selling_plan_id,omitempty"`
	IsProtection  bool                `json:"is_protection,omitempty"`
}

// ProtectionState is the checkbox and override state.
type ProtectionState struct {
	Configured     bool             `json:"configured"`
	Checked        bool             `json:"checked"`
	InCart         bool             `json:"in_cart"`
	OverrideActive bool             `json:"override_active"`
	OverrideExpiry int64            `json:"override_expiry,omitempty"` // Epoch ms
	Reason         reconcile.Reason `json:"reason,omitempty"`
}

func (d *Drawer) buildView(snap *model.CartSnapshot, decision reconcile.Decision, override *reconcile.Override, progress *reconcile.ProgressResult, gift *reconcile.GiftPlan) *View {
	d.mu.Lock()
	fragment, checked := d.fragment, d.uiChecked
	d.mu.Unlock()

	symbol := d.settings.CurrencySymbol
	protectionID := d.settings.Protection.LineItemID

	view := &View{
		CartToken:  snap.Token,
		DrawerHTML: fragment,
		Cart:       snap,
		Counts:     reconcile.CountItems(snap, d.settings.ExcludedProductIDs),
		Lines:      make([]LineView, 0, len(snap.Items)),
		Protection: ProtectionState{
			Configured: protectionID != 0,
			Checked:    checked,
			InCart:     protectionID != 0 && snap.QuantityOf(protectionID) > 0,
			Reason:     decision.Reason,
		},
		Progress: progress,
		Gift:     gift,
	}

	if override != nil {
		view.Protection.OverrideActive = true
		view.Protection.OverrideExpiry = override.Expiry.UnixMilli()
	}

	for _, item := range snap.Items {
		price := reconcile.PriceLine(item)
		lv := LineView{
			Title:        item.Title,
			Quantity:     item.Quantity,
			Prices:       price,
			PriceText:    model.FormatCents(symbol, price.Price),
			IsProtection: item.ID == protectionID,
		}
		if price.CompareAt > price.Price {
			lv.CompareAtText = model.FormatCents(symbol, price.CompareAt)
		}
		if item.SellingPlan != nil {
			lv.SellingPlanID = item.SellingPlan.SellingPlanID
		}
		view.Lines = append(view.Lines, lv)
	}

	if progress != nil {
		view.FreeShippingStatus = progress.FreeShippingStatus(symbol)
		view.GiftStatus = progress.GiftStatus(symbol)
	}

	if d.timer != nil {
		view.ReservationSeconds = int(d.timer.Remaining().Round(time.Second) / time.Second)
	}
	return view
}
