package drawer

import (
	"context"

	"golang.org/x/sync/singleflight"

	"cart-drawer/internal/model"
)

// Fetcher collapses concurrent snapshot and page reads of the same cart into
// one storefront request. Nothing is cached past the in-flight call.
//
// Reads with an empty key are never collapsed: a shopper without a cart
// token gets a cart minted by the storefront, and that cart is theirs alone.
//
// The shared read runs detached from any one caller's cancellation. Each
// caller still stops waiting when its own context is done.
//
// Returned snapshots may be shared between callers and must not be modified.
type Fetcher struct {
	group singleflight.Group
}

// NewFetcher creates a Fetcher. The zero value is also usable.
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Cart fetches the snapshot of the cart identified by key.
func (f *Fetcher) Cart(ctx context.Context, svc CartService, key string) (*model.CartSnapshot, error) {
	if key == "" {
		return svc.GetCart(ctx)
	}
	v, err := f.do(ctx, "cart:"+key, func(ctx context.Context) (any, error) {
		return svc.GetCart(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.CartSnapshot), nil
}

// Page fetches a storefront page rendered for the cart identified by key.
func (f *Fetcher) Page(ctx context.Context, svc CartService, key, path string) (string, error) {
	if key == "" {
		return svc.FetchPage(ctx, path)
	}
	v, err := f.do(ctx, "page:"+key+":"+path, func(ctx context.Context) (any, error) {
		return svc.FetchPage(ctx, path)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// do joins or starts the call for key and waits for it or for ctx.
// The call itself keeps ctx's values but not its deadline or cancellation;
// the storefront client's own timeout bounds it.
func (f *Fetcher) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		return fn(shared)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
