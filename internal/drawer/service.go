// Package drawer runs the cart rebuild cycle for one shopper session: it
// fetches the cart, renders the drawer fragment, converges the shipping
// protection and free gift lines, and serves the user actions that mutate
// the cart.
//
// Decisions come from the pure functions in reconcile; this package owns the
// side effects (storefront mutations, override persistence, logging, metrics)
// and the recursion guard that keeps a rebuild from triggering another.
package drawer

import (
	"context"

	"cart-drawer/internal/model"
)

// CartService is the remote cart the drawer converges. Implemented by
// *shopify.Client and by Fake.
type CartService interface {
	GetCart(ctx context.Context) (*model.CartSnapshot, error)
	AddItems(ctx context.Context, items []model.AddItem) ([]model.LineItem, error)
	ChangeItem(ctx context.Context, req model.ChangeRequest) (*model.CartSnapshot, error)
	UpdateQuantities(ctx context.Context, quantities map[int64]int) (*model.CartSnapshot, error)
	Clear(ctx context.Context) (*model.CartSnapshot, error)
	FetchPage(ctx context.Context, path string) (string, error)
}

// Shopper-facing alerts for user-initiated mutations.
const (
	AlertAddItems   = "Error adding items to the cart."
	AlertAddGift    = "Error adding gift to cart"
	AlertUpdateCart = "Error updating the cart."
)
