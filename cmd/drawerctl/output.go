package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/model"
	"cart-drawer/internal/reconcile"
)

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// printView prints the drawer as JSON or as a short summary.
func printView(w io.Writer, opts *globalOptions, view *drawer.View) {
	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(view)
		return
	}

	fmt.Fprintf(w, "\n%sCart%s %s(%d in bubble, %d items)%s\n",
		colorBold, colorReset, colorGray, view.Counts.Bubble, view.Counts.True, colorReset)
	if len(view.Lines) == 0 {
		fmt.Fprintf(w, "  %sempty%s\n", colorGray, colorReset)
	}
	for _, line := range view.Lines {
		price := line.PriceText
		if line.CompareAtText != "" {
			price = fmt.Sprintf("%s %s(was %s)%s", price, colorGray, line.CompareAtText, colorReset)
		}
		marker := " "
		if line.IsProtection {
			marker = "+"
		}
		fmt.Fprintf(w, "  %s %3d × %-40s %s\n", marker, line.Quantity, line.Title, price)
	}

	p := view.Protection
	if p.Configured {
		state := colorGreen + "on" + colorReset
		if !p.Checked {
			state = colorYellow + "off" + colorReset
		}
		fmt.Fprintf(w, "\nShipping protection: %s %s(%s)%s\n", state, colorGray, p.Reason, colorReset)
		if p.OverrideActive && p.OverrideExpiry > 0 {
			until := time.UnixMilli(p.OverrideExpiry).Local().Format(time.Kitchen)
			fmt.Fprintf(w, "  %sopted out until %s%s\n", colorGray, until, colorReset)
		}
	}

	if view.FreeShippingStatus != "" {
		fmt.Fprintf(w, "Free shipping: %s\n", view.FreeShippingStatus)
	}
	if view.GiftStatus != "" {
		fmt.Fprintf(w, "Gift: %s\n", view.GiftStatus)
	}
	if view.Gift != nil && view.Gift.Action != reconcile.GiftNone {
		fmt.Fprintf(w, "  %sgift action: %s%s\n", colorYellow, view.Gift.Action, colorReset)
	}
	if view.ReservationSeconds > 0 {
		fmt.Fprintf(w, "Reserved for %s\n", formatSeconds(view.ReservationSeconds))
	}
}

// printStep reports one reconciler's decision.
func printStep(w io.Writer, name, decision string, mutated bool) {
	if mutated {
		fmt.Fprintf(w, "%s✓ %s: %s (cart updated)%s\n", colorGreen, name, decision, colorReset)
		return
	}
	fmt.Fprintf(w, "%s→ %s: %s%s\n", colorGray, name, decision, colorReset)
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

// describeError prefers the shopper-facing alert of a failed mutation.
func describeError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Alert != "" {
		return fmt.Errorf("%s (%w)", apiErr.Alert, err)
	}
	return err
}

// formatSeconds renders a countdown as m:ss.
func formatSeconds(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
