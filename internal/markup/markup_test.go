package markup

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cart-drawer/internal/reconcile"
)

const page = `<!doctype html>
<html><body>
<header><span class="cart-count">3</span></header>
<div id="cart-drawer-kandy">
  <div class="cd__timer" data-timer="15"></div>
  <div class="cd__ship-prot" data-id="44012345" data-protection="true">
    <span class="cd__ship-prot-checking"></span>
  </div>
  <div class="discount-bar">
    <span class="discount-bar__threshold" data-value="5000" data-type="free-shipping"></span>
    <span class="discount-bar__threshold" data-value="10000" data-type="gift" data-id="42"></span>
  </div>
  <a class="cd__checkout-btn" data-cur="$0.00">Checkout</a>
</div>
</body></html>`

func TestExtractFragment(t *testing.T) {
	frag, err := ExtractFragment(page, DefaultFragmentID)
	if err != nil {
		t.Fatalf("ExtractFragment: %v", err)
	}
	if !strings.HasPrefix(frag, `<div class="cd__timer"`) {
		t.Errorf("fragment starts with %.40q", frag)
	}
	if strings.Contains(frag, "cart-count") {
		t.Error("fragment leaked markup from outside the drawer")
	}
}

func TestExtractFragment_Missing(t *testing.T) {
	_, err := ExtractFragment(page, "no-such-drawer")
	if !errors.Is(err, ErrFragmentNotFound) {
		t.Errorf("err = %v, want ErrFragmentNotFound", err)
	}
}

func TestParseSettings(t *testing.T) {
	got, err := ParseSettings(page)
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	want := Settings{
		Protection: reconcile.ProtectionConfig{LineItemID: 44012345, EnabledByDefault: true},
		Thresholds: []reconcile.Threshold{
			{Value: 5000, Kind: reconcile.KindFreeShipping},
			{Value: 10000, Kind: reconcile.KindGift, GiftProductID: 42},
		},
		ReservationMinutes: 15,
		CurrencySymbol:     "$",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseSettings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSettings_MissingAttributes(t *testing.T) {
	got, err := ParseSettings(`<div class="cd__ship-prot"></div><div class="discount-bar__threshold" data-value="abc"></div>`)
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	if got.Protection.LineItemID != 0 || got.Protection.EnabledByDefault {
		t.Errorf("protection = %+v, want zero", got.Protection)
	}
	if len(got.Thresholds) != 1 || got.Thresholds[0].Value != 0 {
		t.Errorf("thresholds = %+v, want one zero-value threshold", got.Thresholds)
	}
	if got.CurrencySymbol != "" || got.ReservationMinutes != 0 {
		t.Errorf("timer/currency should be empty, got %d / %q", got.ReservationMinutes, got.CurrencySymbol)
	}
}

func TestParseSettings_CommaCurrency(t *testing.T) {
	got, _ := ParseSettings(`<a class="cd__checkout-btn" data-cur="0,00 €"></a>`)
	if got.CurrencySymbol != "€" {
		t.Errorf("currency = %q, want €", got.CurrencySymbol)
	}
}
