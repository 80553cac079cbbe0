package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/model"
	"cart-drawer/internal/reconcile"
	"cart-drawer/internal/storage"
)

const (
	protectionVariant = 999
	shirtVariant      = 111
	cartToken         = "tok-1"
)

const storefrontPage = `<html><body>
<div id="cart-drawer-kandy">
  <div class="cd__ship-prot" data-id="999" data-protection="true"></div>
  <button class="cd__checkout-btn" data-cur="$0.00">Checkout</button>
</div>
</body></html>`

// storefront is a minimal Ajax Cart API keyed by the cart cookie.
type storefront struct {
	mu      sync.Mutex
	lines   map[int64]int
	cookies []string
}

var catalog = map[int64]struct {
	product int64
	title   string
	price   int64
}{
	protectionVariant: {99, "Shipping Protection", 300},
	shirtVariant:      {11, "Shirt", 800},
}

func newStorefront(t *testing.T) (*storefront, *httptest.Server) {
	t.Helper()
	sf := &storefront{lines: make(map[int64]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		sf.seen(r)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(storefrontPage))
	})
	mux.HandleFunc("GET /cart.js", func(w http.ResponseWriter, r *http.Request) {
		sf.seen(r)
		sf.writeCart(w)
	})
	mux.HandleFunc("POST /cart/add.js", func(w http.ResponseWriter, r *http.Request) {
		sf.seen(r)
		var req struct {
			Items []struct {
				ID       int64 `json:"id"`
				Quantity int   `json:"quantity"`
			} `json:"items"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		sf.mu.Lock()
		for _, item := range req.Items {
			sf.lines[item.ID] += item.Quantity
		}
		sf.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	})
	mux.HandleFunc("POST /cart/update.js", func(w http.ResponseWriter, r *http.Request) {
		sf.seen(r)
		var req struct {
			Updates map[string]int `json:"updates"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		sf.mu.Lock()
		for key, qty := range req.Updates {
			id, _ := strconv.ParseInt(key, 10, 64)
			sf.lines[id] = qty
		}
		sf.mu.Unlock()
		sf.writeCart(w)
	})
	mux.HandleFunc("POST /cart/clear.js", func(w http.ResponseWriter, r *http.Request) {
		sf.seen(r)
		sf.mu.Lock()
		sf.lines = make(map[int64]int)
		sf.mu.Unlock()
		sf.writeCart(w)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return sf, srv
}

func (sf *storefront) seen(r *http.Request) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if c, err := r.Cookie("cart"); err == nil {
		sf.cookies = append(sf.cookies, c.Value)
	}
}

func (sf *storefront) writeCart(w http.ResponseWriter) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	items := []map[string]any{}
	count := 0
	for _, id := range []int64{shirtVariant, protectionVariant} {
		qty := sf.lines[id]
		if qty <= 0 {
			continue
		}
		v := catalog[id]
		total := v.price * int64(qty)
		items = append(items, map[string]any{
			"id": id, "product_id": v.product, "title": v.title, "quantity": qty,
			"price": v.price, "line_price": total, "final_line_price": total, "original_line_price": total,
		})
		count += qty
	}

	http.SetCookie(w, &http.Cookie{Name: "cart", Value: cartToken, Path: "/"})
	json.NewEncoder(w).Encode(map[string]any{
		"token": cartToken, "item_count": count, "items": items, "currency": "USD",
	})
}

func (sf *storefront) quantity(id int64) int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.lines[id]
}

// runCLI executes drawerctl with the given arguments and returns its output.
func runCLI(t *testing.T, storeURL, statePath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--store", storeURL, "--state", statePath, "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_ProtectionOptOutPersistsAcrossRuns(t *testing.T) {
	sf, srv := newStorefront(t)
	statePath := filepath.Join(t.TempDir(), "state.db")

	out, err := runCLI(t, srv.URL, statePath, "add", "111:2")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if got := sf.quantity(shirtVariant); got != 2 {
		t.Errorf("shirt quantity = %d, want 2", got)
	}
	if got := sf.quantity(protectionVariant); got != 1 {
		t.Errorf("protection quantity = %d, want 1 (enabled by default)", got)
	}
	if !strings.Contains(out, "Shipping protection: on") {
		t.Errorf("output missing protection state:\n%s", out)
	}

	out, err = runCLI(t, srv.URL, statePath, "toggle-protection")
	if err != nil {
		t.Fatalf("toggle-protection: %v\n%s", err, out)
	}
	if got := sf.quantity(protectionVariant); got != 0 {
		t.Errorf("protection quantity after toggle = %d, want 0", got)
	}

	out, err = runCLI(t, srv.URL, statePath, "--json", "show")
	if err != nil {
		t.Fatalf("show: %v\n%s", err, out)
	}
	var view drawer.View
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decoding view: %v\n%s", err, out)
	}
	if view.CartToken != cartToken {
		t.Errorf("CartToken = %q, want %q", view.CartToken, cartToken)
	}
	if view.Protection.Checked || view.Protection.Reason != reconcile.ReasonOverride {
		t.Errorf("protection = %+v, want unchecked by override", view.Protection)
	}
	if got := sf.quantity(protectionVariant); got != 0 {
		t.Errorf("protection re-added on a later run: quantity %d", got)
	}

	// Later runs bind the saved token rather than relying on a cookie jar
	sf.mu.Lock()
	cookies := sf.cookies
	sf.mu.Unlock()
	if len(cookies) == 0 || cookies[len(cookies)-1] != cartToken {
		t.Errorf("cart cookies seen = %v, want the last one to be %q", cookies, cartToken)
	}

	state, err := storage.NewSQLite(context.Background(), statePath)
	if err != nil {
		t.Fatalf("reopening state: %v", err)
	}
	defer state.Close()
	if _, ok, _ := state.Get(context.Background(), storage.OverrideKey); !ok {
		t.Error("opt-out not persisted in the state file")
	}
	if raw, _, _ := state.Get(context.Background(), protectionKey); raw != "false" {
		t.Errorf("saved protection state = %q, want false", raw)
	}
}

func TestCLI_Clear(t *testing.T) {
	sf, srv := newStorefront(t)
	statePath := filepath.Join(t.TempDir(), "state.db")

	if out, err := runCLI(t, srv.URL, statePath, "add", "111"); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	out, err := runCLI(t, srv.URL, statePath, "clear")
	if err != nil {
		t.Fatalf("clear: %v\n%s", err, out)
	}
	if sf.quantity(shirtVariant) != 0 || sf.quantity(protectionVariant) != 0 {
		t.Error("cart not cleared")
	}
	if !strings.Contains(out, "empty") {
		t.Errorf("output should show an empty cart:\n%s", out)
	}
}

func TestCLI_ChangeUnknownLine(t *testing.T) {
	_, srv := newStorefront(t)
	statePath := filepath.Join(t.TempDir(), "state.db")

	_, err := runCLI(t, srv.URL, statePath, "change", "111", "plus")
	if err == nil || !strings.Contains(err.Error(), "not in the cart") {
		t.Errorf("err = %v, want not in the cart", err)
	}
}

func TestCLI_RequiresStore(t *testing.T) {
	t.Setenv("STORE_URL", "")
	_, err := runCLI(t, "", filepath.Join(t.TempDir(), "state.db"), "show")
	if err == nil || !strings.Contains(err.Error(), "--store") {
		t.Errorf("err = %v, want a missing store error", err)
	}
}

func TestParseAddItem(t *testing.T) {
	tests := []struct {
		arg     string
		want    model.AddItem
		wantErr bool
	}{
		{arg: "111", want: model.AddItem{ID: 111, Quantity: 1}},
		{arg: "111:3", want: model.AddItem{ID: 111, Quantity: 3}},
		{arg: "111:2:77", want: model.AddItem{ID: 111, Quantity: 2, SellingPlanID: 77}},
		{arg: "abc", wantErr: true},
		{arg: "111:0", wantErr: true},
		{arg: "111:x", wantErr: true},
		{arg: "111:1:-5", wantErr: true},
		{arg: "1:2:3:4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseAddItem(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAddItem(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseAddItem(%q) mismatch (-want +got):\n%s", tt.arg, diff)
			}
		})
	}
}

func TestDescribeError(t *testing.T) {
	if describeError(nil) != nil {
		t.Error("nil error should stay nil")
	}

	plain := errors.New("boom")
	if got := describeError(plain); got != plain {
		t.Errorf("describeError(plain) = %v, want unchanged", got)
	}

	withAlert := model.WithAlert(model.NewCartError("sold out"), drawer.AlertAddItems)
	got := describeError(withAlert)
	if !strings.HasPrefix(got.Error(), drawer.AlertAddItems) {
		t.Errorf("describeError = %q, want the alert first", got)
	}
	if !errors.Is(got, model.ErrCartRejected) {
		t.Error("describeError should keep the error chain")
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[int]string{0: "0:00", 59: "0:59", 61: "1:01", 600: "10:00"}
	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%d) = %q, want %q", in, got, want)
		}
	}
}
