package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cart-drawer/internal/model"
)

const cartJSON = `{
  "token": "c1-abc",
  "item_count": 3,
  "currency": "USD",
  "total_price": 4100,
  "items": [
    {"id": 111, "product_id": 11, "key": "111:k", "title": "Gummies - 3 Pack", "quantity": 2,
     "line_price": 4000, "final_line_price": 4000, "original_line_price": 5000,
     "variant_options": ["3 Pack"],
     "selling_plan_allocation": {"price": 2000, "compare_at_price": 2500, "selling_plan": {"id": 77, "name": "Monthly"}}},
    {"id": 999, "product_id": 99, "key": "999:k", "title": "Shipping Protection", "quantity": 1,
     "line_price": 300, "final_line_price": 300, "original_line_price": 300, "variant_options": ["Default Title"]}
  ],
  "cart_level_discount_applications": [{"title": "WELCOME", "total_allocated_amount": 200}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{StoreURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresStoreURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty store URL")
	}
}

func TestGetCart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/cart.js" {
			t.Errorf("request = %s %s, want GET /cart.js", r.Method, r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		io.WriteString(w, cartJSON)
	})

	snap, err := c.GetCart(context.Background())
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}

	if snap.Token != "c1-abc" || snap.ItemCount != 3 || len(snap.Items) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	first := snap.Items[0]
	if first.ID != 111 || first.ProductID != 11 || first.FinalLinePrice != 4000 || first.OriginalLinePrice != 5000 {
		t.Errorf("first line = %+v", first)
	}
	if first.SellingPlan == nil || first.SellingPlan.SellingPlanID != 77 || first.SellingPlan.CompareAtPrice != 2500 {
		t.Errorf("selling plan = %+v", first.SellingPlan)
	}
	if len(first.VariantOptions) != 1 || first.VariantOptions[0] != "3 Pack" {
		t.Errorf("variant options = %v", first.VariantOptions)
	}
	if snap.Items[1].SellingPlan != nil {
		t.Error("second line should have no selling plan")
	}
	if len(snap.CartLevelDiscounts) != 1 || snap.CartLevelDiscounts[0].TotalAllocatedAmount != 200 {
		t.Errorf("discounts = %+v", snap.CartLevelDiscounts)
	}
}

func TestSession_SendsCartCookie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("cart")
		if err != nil || cookie.Value != "tok-123" {
			t.Errorf("cart cookie = %v, %v; want tok-123", cookie, err)
		}
		io.WriteString(w, `{"item_count":0,"items":[],"cart_level_discount_applications":[]}`)
	})

	session := c.Session("tok-123")
	if c.CartToken() != "" {
		t.Error("Session must not modify the parent client")
	}

	snap, err := session.GetCart(context.Background())
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if snap.Token != "tok-123" {
		t.Errorf("token = %q, want bound token when response omits it", snap.Token)
	}
}

func TestAddItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart/add.js" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req AddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Items) != 1 || req.Items[0].ID != 111 || req.Items[0].Quantity != 2 || req.Items[0].SellingPlan != 77 {
			t.Errorf("add body = %+v", req)
		}
		io.WriteString(w, `{"items":[{"id":111,"product_id":11,"quantity":2,"final_line_price":4000}]}`)
	})

	added, err := c.AddItems(context.Background(), []model.AddItem{{ID: 111, Quantity: 2, SellingPlanID: 77}})
	if err != nil {
		t.Fatalf("AddItems: %v", err)
	}
	if len(added) != 1 || added[0].ID != 111 || added[0].Quantity != 2 {
		t.Errorf("added = %+v", added)
	}
}

func TestAddItems_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.AddItems(context.Background(), nil)
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestChangeItem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart/change.js" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if raw["id"] != float64(999) || raw["quantity"] != float64(0) {
			t.Errorf("change body = %v", raw)
		}
		if _, ok := raw["selling_plan"]; ok {
			t.Error("selling_plan should be omitted when unset")
		}
		io.WriteString(w, `{"item_count":2,"items":[{"id":111,"product_id":11,"quantity":2}],"cart_level_discount_applications":[]}`)
	})

	snap, err := c.ChangeItem(context.Background(), model.ChangeRequest{ID: 999, Quantity: model.Qty(0)})
	if err != nil {
		t.Fatalf("ChangeItem: %v", err)
	}
	if snap.QuantityOf(999) != 0 || snap.ItemCount != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestChangeItem_Validation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx := context.Background()

	if _, err := c.ChangeItem(ctx, model.ChangeRequest{Quantity: model.Qty(1)}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("missing id: err = %v", err)
	}
	if _, err := c.ChangeItem(ctx, model.ChangeRequest{ID: 1, Quantity: model.Qty(-1)}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("negative quantity: err = %v", err)
	}
}

func TestUpdateQuantities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req UpdateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Updates["999"] != 0 || req.Updates["111"] != 3 || len(req.Updates) != 2 {
			t.Errorf("updates = %v", req.Updates)
		}
		io.WriteString(w, `{"item_count":3,"items":[{"id":111,"product_id":11,"quantity":3}],"cart_level_discount_applications":[]}`)
	})

	snap, err := c.UpdateQuantities(context.Background(), map[int64]int{999: 0, 111: 3})
	if err != nil {
		t.Fatalf("UpdateQuantities: %v", err)
	}
	if snap.QuantityOf(111) != 3 {
		t.Errorf("quantity = %d, want 3", snap.QuantityOf(111))
	}
}

func TestClear(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cart/clear.js" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"item_count":0,"items":[],"cart_level_discount_applications":[]}`)
	})

	snap, err := c.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if snap.ItemCount != 0 || len(snap.Items) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestFetchPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/all" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `<html><div id="cart-drawer-kandy">hi</div></html>`)
	})

	html, err := c.FetchPage(context.Background(), "collections/all")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if html != `<html><div id="cart-drawer-kandy">hi</div></html>` {
		t.Errorf("html = %q", html)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		code     string
	}{
		{"not found", 404, `{"status":404,"message":"Cart Error","description":"Cannot find variant"}`, model.ErrNotFound, "NOT_FOUND"},
		{"sold out", 422, `{"status":422,"message":"Cart Error","description":"All 1 Gummies are in your cart."}`, model.ErrCartRejected, "CART_REJECTED"},
		{"bad request", 400, `{"status":"bad_request","message":"Parameter Missing","description":"Required parameter missing"}`, model.ErrInvalidRequest, "VALIDATION_ERROR"},
		{"rate limited", 429, ``, model.ErrRateLimited, "RATE_LIMITED"},
		{"server error", 503, `oops`, model.ErrUpstreamError, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.GetCart(context.Background())
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("err = %v, want %v", err, tt.sentinel)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code || apiErr.StatusCode == 0 {
				t.Errorf("APIError = %+v, want code %s", apiErr, tt.code)
			}
		})
	}
}

func TestErrorMapping_CartRejectedDescription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		io.WriteString(w, `{"status":422,"message":"Cart Error","description":"Sold out"}`)
	})

	_, err := c.AddItems(context.Background(), []model.AddItem{{ID: 1, Quantity: 1}})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Sold out" {
		t.Errorf("err = %v, want message from description", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, _ := New(Config{StoreURL: srv.URL})
	_, err := c.GetCart(context.Background())
	if !errors.Is(err, model.ErrUpstreamError) {
		t.Errorf("err = %v, want ErrUpstreamError", err)
	}
}
