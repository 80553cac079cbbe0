// Package markup reads the storefront's server-rendered HTML: it extracts the
// cart drawer fragment and the static settings the theme publishes as data
// attributes.
package markup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cart-drawer/internal/reconcile"
)

// ErrFragmentNotFound is returned when the page has no element with the requested id.
var ErrFragmentNotFound = errors.New("drawer fragment not found")

// DefaultFragmentID is the id of the cart drawer container in the theme.
const DefaultFragmentID = "cart-drawer-kandy"

// Settings is the drawer configuration found in page markup.
// Absent attributes leave the zero value.
type Settings struct {
	Protection         reconcile.ProtectionConfig
	Thresholds         []reconcile.Threshold
	ReservationMinutes int
	CurrencySymbol     string
}

// ExtractFragment returns the inner HTML of the element with the given id.
func ExtractFragment(html, id string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	sel := doc.Find("#" + id).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: #%s", ErrFragmentNotFound, id)
	}

	inner, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("rendering fragment: %w", err)
	}
	return strings.TrimSpace(inner), nil
}

// ParseSettings reads protection, threshold, timer and currency settings.
func ParseSettings(html string) (Settings, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Settings{}, fmt.Errorf("parsing page: %w", err)
	}

	var s Settings

	prot := doc.Find(".cd__ship-prot").First()
	s.Protection.LineItemID = int64Attr(prot, "data-id")
	s.Protection.EnabledByDefault = prot.AttrOr("data-protection", "") == "true"

	doc.Find(".discount-bar__threshold").Each(func(_ int, el *goquery.Selection) {
		t := reconcile.Threshold{
			Value: int64Attr(el, "data-value"),
			Kind:  reconcile.KindFreeShipping,
		}
		if el.AttrOr("data-type", "") == string(reconcile.KindGift) {
			t.Kind = reconcile.KindGift
			t.GiftProductID = int64Attr(el, "data-id")
		}
		s.Thresholds = append(s.Thresholds, t)
	})

	s.ReservationMinutes = int(int64Attr(doc.Find(".cd__timer").First(), "data-timer"))

	// data-cur holds a money format such as "$0.00" or "0,00 €"
	if cur, ok := doc.Find(".cd__checkout-btn").First().Attr("data-cur"); ok {
		cur = strings.ReplaceAll(cur, "0,00", "")
		cur = strings.ReplaceAll(cur, "0.00", "")
		s.CurrencySymbol = strings.TrimSpace(cur)
	}

	return s, nil
}

// int64Attr parses a numeric attribute. Decimal values are truncated; missing
// or malformed values read as 0.
func int64Attr(sel *goquery.Selection, name string) int64 {
	raw, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f)
	}
	return 0
}
