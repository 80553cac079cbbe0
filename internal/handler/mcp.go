// MCP transport handler for the cart drawer using the official MCP Go SDK.
// Exposes the drawer operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/model"
)

// === MCP Tool Input Types ===
// Every tool carries the same session fields the REST transport reads from
// the Drawer-State header.

// GetDrawerInput is the input schema for get_drawer tool.
type GetDrawerInput struct {
	CartToken  string `json:"cart_token,omitempty" jsonschema:"storefront cart token"`
	Protection *bool  `json:"protection,omitempty" jsonschema:"shipping protection checkbox state last shown to the shopper"`
}

// ToggleProtectionInput is the input schema for toggle_protection tool.
type ToggleProtectionInput struct {
	CartToken  string `json:"cart_token" jsonschema:"storefront cart token"`
	Protection *bool  `json:"protection,omitempty" jsonschema:"shipping protection checkbox state last shown to the shopper"`
}

// AddItemsInput is the input schema for add_items tool.
type AddItemsInput struct {
	CartToken  string      `json:"cart_token" jsonschema:"storefront cart token"`
	Protection *bool       `json:"protection,omitempty" jsonschema:"shipping protection checkbox state last shown to the shopper"`
	Items      []ItemInput `json:"items" jsonschema:"variants to add"`
}

// ItemInput is one variant to add.
type ItemInput struct {
	ID          int64 `json:"id" jsonschema:"variant ID"`
	Quantity    int   `json:"quantity" jsonschema:"units to add"`
	SellingPlan int64 `json:"selling_plan,omitempty" jsonschema:"selling plan ID for subscriptions"`
}

// ChangeQuantityInput is the input schema for change_quantity tool.
type ChangeQuantityInput struct {
	CartToken  string `json:"cart_token" jsonschema:"storefront cart token"`
	Protection *bool  `json:"protection,omitempty" jsonschema:"shipping protection checkbox state last shown to the shopper"`
	LineItemID int64  `json:"line_item_id" jsonschema:"variant ID of the line"`
	Action     string `json:"action" jsonschema:"plus, minus or remove"`
	Quantity   int    `json:"quantity" jsonschema:"current quantity of the line"`
}

// SelectGiftInput is the input schema for select_gift tool.
type SelectGiftInput struct {
	CartToken  string `json:"cart_token" jsonschema:"storefront cart token"`
	Protection *bool  `json:"protection,omitempty" jsonschema:"shipping protection checkbox state last shown to the shopper"`
	VariantID  int64  `json:"variant_id" jsonschema:"gift variant the shopper picked"`
}

// NewMCPServer creates an MCP server with drawer tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cart-drawer",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Cart drawer for a Shopify storefront. " +
				"Every call reconciles shipping protection and the free gift before returning the drawer.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_drawer",
		Description: "Rebuild the cart drawer and return its state",
	}, h.mcpGetDrawer)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "toggle_protection",
		Description: "Flip the shipping protection checkbox. Unchecking opts out for one hour",
	}, h.mcpToggleProtection)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_items",
		Description: "Add variants to the cart",
	}, h.mcpAddItems)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "change_quantity",
		Description: "Apply a quantity button (plus, minus, remove) to a cart line",
	}, h.mcpChangeQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_gift",
		Description: "Add the free gift variant the shopper picked",
	}, h.mcpSelectGift)

	return server
}

// NewMCPHandler returns an http.Handler for the MCP endpoint.
// Uses the MCP Streamable HTTP transport.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)
}

// === MCP Tool Handlers ===

func (h *Handler) mcpGetDrawer(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetDrawerInput,
) (*mcp.CallToolResult, *drawer.View, error) {
	state := SessionState{CartToken: input.CartToken, Protection: input.Protection}
	return h.mcpRun(ctx, state, false, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.Rebuild(ctx)
	})
}

func (h *Handler) mcpToggleProtection(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ToggleProtectionInput,
) (*mcp.CallToolResult, *drawer.View, error) {
	state := SessionState{CartToken: input.CartToken, Protection: input.Protection}
	return h.mcpRun(ctx, state, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.ToggleProtection(ctx)
	})
}

func (h *Handler) mcpAddItems(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddItemsInput,
) (*mcp.CallToolResult, *drawer.View, error) {
	items := make([]model.AddItem, len(input.Items))
	for i, item := range input.Items {
		items[i] = model.AddItem{ID: item.ID, Quantity: item.Quantity, SellingPlanID: item.SellingPlan}
	}

	state := SessionState{CartToken: input.CartToken, Protection: input.Protection}
	return h.mcpRun(ctx, state, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.AddItems(ctx, items)
	})
}

func (h *Handler) mcpChangeQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ChangeQuantityInput,
) (*mcp.CallToolResult, *drawer.View, error) {
	if input.LineItemID <= 0 {
		return nil, nil, fmt.Errorf("line_item_id is required")
	}

	state := SessionState{CartToken: input.CartToken, Protection: input.Protection}
	return h.mcpRun(ctx, state, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.ChangeQuantity(ctx, input.LineItemID, drawer.QuantityAction(input.Action), input.Quantity)
	})
}

func (h *Handler) mcpSelectGift(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SelectGiftInput,
) (*mcp.CallToolResult, *drawer.View, error) {
	state := SessionState{CartToken: input.CartToken, Protection: input.Protection}
	return h.mcpRun(ctx, state, true, func(ctx context.Context, d *drawer.Drawer) (*drawer.View, error) {
		return d.SelectGift(ctx, input.VariantID)
	})
}

// mcpRun opens the session's drawer and runs op.
func (h *Handler) mcpRun(ctx context.Context, state SessionState, requireCart bool, op drawerOp) (*mcp.CallToolResult, *drawer.View, error) {
	if requireCart && state.CartToken == "" {
		return nil, nil, fmt.Errorf("cart_token is required")
	}

	d := h.sessions.Open(state)
	defer d.Close()

	view, err := op(ctx, d)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, view, nil
}

// mcpError converts drawer errors to MCP-friendly errors.
// The shopper-facing alert is appended when present.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Alert != "" {
			return fmt.Errorf("%s: %s (%s)", apiErr.Code, apiErr.Message, apiErr.Alert)
		}
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
