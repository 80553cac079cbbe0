package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cart-drawer/internal/model"
)

// userAgent identifies this client to the storefront.
// Storefront CDNs throttle requests without one.
const userAgent = "CartDrawer/1.0"

// cartCookie is the cookie the storefront keys carts by.
const cartCookie = "cart"

// Config holds storefront client configuration.
type Config struct {
	StoreURL   string
	HTTPClient *http.Client // Defaults to a 30s client without a cookie jar
}

// Client talks to one storefront's Ajax Cart API.
//
// The cart is identified either by the HTTP client's cookie jar (CLI: one
// shopper, cookies kept across calls) or by an explicit token bound with
// Session (server: the shopper's token arrives per request).
type Client struct {
	httpClient *http.Client
	storeURL   string
	cartToken  string
}

// New creates a storefront client.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		storeURL:   strings.TrimSuffix(cfg.StoreURL, "/"),
	}, nil
}

// Session returns a copy of the client bound to the given cart token.
// The HTTP client (and its connection pool) is shared.
func (c *Client) Session(cartToken string) *Client {
	cp := *c
	cp.cartToken = cartToken
	return &cp
}

// CartToken returns the bound cart token, empty when the cookie jar is used.
func (c *Client) CartToken() string {
	return c.cartToken
}

// GetCart fetches the current cart.
func (c *Client) GetCart(ctx context.Context) (*model.CartSnapshot, error) {
	var cart CartResponse
	if err := c.do(ctx, http.MethodGet, "/cart.js", nil, &cart); err != nil {
		return nil, err
	}
	return c.snapshot(&cart), nil
}

// AddItems adds lines to the cart and returns the lines that were added.
// The storefront rejects the whole request if any item cannot be added.
func (c *Client) AddItems(ctx context.Context, items []model.AddItem) ([]model.LineItem, error) {
	if len(items) == 0 {
		return nil, model.NewValidationError("items", "at least one item required")
	}
	var resp AddResponse
	if err := c.do(ctx, http.MethodPost, "/cart/add.js", AddRequest{Items: toAddItems(items)}, &resp); err != nil {
		return nil, err
	}
	added := make([]model.LineItem, len(resp.Items))
	for i, item := range resp.Items {
		added[i] = toLineItem(item)
	}
	return added, nil
}

// ChangeItem sets the quantity and/or selling plan of one line.
func (c *Client) ChangeItem(ctx context.Context, req model.ChangeRequest) (*model.CartSnapshot, error) {
	if req.ID == 0 {
		return nil, model.NewValidationError("id", "line item id is required")
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return nil, model.NewValidationError("quantity", "must not be negative")
	}
	body := ChangeRequest{ID: req.ID, Quantity: req.Quantity, SellingPlan: req.SellingPlanID}
	var cart CartResponse
	if err := c.do(ctx, http.MethodPost, "/cart/change.js", body, &cart); err != nil {
		return nil, err
	}
	return c.snapshot(&cart), nil
}

// UpdateQuantities sets quantities of several lines, keyed by variant ID.
func (c *Client) UpdateQuantities(ctx context.Context, quantities map[int64]int) (*model.CartSnapshot, error) {
	var cart CartResponse
	if err := c.do(ctx, http.MethodPost, "/cart/update.js", UpdateRequest{Updates: toUpdates(quantities)}, &cart); err != nil {
		return nil, err
	}
	return c.snapshot(&cart), nil
}

// Clear empties the cart.
func (c *Client) Clear(ctx context.Context) (*model.CartSnapshot, error) {
	var cart CartResponse
	if err := c.do(ctx, http.MethodPost, "/cart/clear.js", struct{}{}, &cart); err != nil {
		return nil, err
	}
	return c.snapshot(&cart), nil
}

// FetchPage returns the HTML of a storefront page rendered for this cart.
func (c *Client) FetchPage(ctx context.Context, path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storeURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("creating page request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.NewUpstreamError("storefront", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading page response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", parseErrorResponse(resp.StatusCode, body)
	}
	return string(body), nil
}

// snapshot converts a cart and keeps the bound token when the storefront omits it.
func (c *Client) snapshot(cart *CartResponse) *model.CartSnapshot {
	snap := toSnapshot(cart)
	if snap.Token == "" {
		snap.Token = c.cartToken
	}
	return snap
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s body: %w", path, err)
		}
		reader = bytes.NewReader(bodyJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.storeURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", path, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("storefront", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

// setHeaders sets headers for Ajax Cart API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	if c.cartToken != "" {
		req.AddCookie(&http.Cookie{Name: cartCookie, Value: c.cartToken})
	}
}

// parseErrorResponse converts a storefront error to an APIError.
func parseErrorResponse(statusCode int, body []byte) error {
	var apiErr ErrorResponse
	json.Unmarshal(body, &apiErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError("cart item")
	case 400:
		msg := apiErr.Description
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 422:
		return model.NewCartError(apiErr.Description)
	case 429:
		return model.NewRateLimitError("storefront")
	default:
		return model.NewUpstreamError("storefront",
			fmt.Errorf("status %d: %s - %s", statusCode, apiErr.Message, apiErr.Description))
	}
}
