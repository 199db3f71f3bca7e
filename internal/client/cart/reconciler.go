// Package cart keeps the offline cart and the server-authoritative cart
// convergent. Local mutations are optimistic; remote writes are dispatched as
// detached best-effort tasks whose failure is only ever observed by the next
// full reconciliation, never by rolling back the optimistic update.
package cart

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/storage/cartitems"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// Merge combines the server cart with the offline copy. The server wins on
// duplicate product ids because the server cart is the billing source of
// truth: output is the server items first, in their given order, then the
// local items whose product id the server does not know about.
func Merge(server, local []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, 0, len(server)+len(local))
	seen := make(map[int64]struct{}, len(server))
	for _, item := range server {
		out = append(out, item)
		seen[item.ProductID] = struct{}{}
	}
	for _, item := range local {
		if _, ok := seen[item.ProductID]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// LoadResult is what Load hands to the presentation layer. Advisory is a
// non-fatal, user-visible message set when the view degraded to local data.
type LoadResult struct {
	Cart     models.Cart
	Advisory string
}

// Reconciler merges the two cart stores and issues best-effort mutations.
type Reconciler struct {
	api   api.Client
	local cartitems.Repository
	log   logging.Logger

	// dispatch is the seam for detached remote writes; tests replace it to
	// run them inline.
	dispatch func(fn func())

	mu   sync.Mutex
	last []models.CartItem
}

// NewReconciler constructs a reconciler over the remote API and the offline
// store.
func NewReconciler(apiClient api.Client, local cartitems.Repository, log logging.Logger) *Reconciler {
	return &Reconciler{
		api:      apiClient,
		local:    local,
		log:      log,
		dispatch: func(fn func()) { go fn() },
	}
}

// Load builds the cart view. With a token it fetches the server cart and
// merges the offline copy into it; on fetch failure it falls back to the
// offline copy alone and sets an advisory. Load never returns an error: the
// most recent successful response is authoritative over any optimistic local
// mutation performed before it.
func (r *Reconciler) Load(ctx context.Context, token string) LoadResult {
	localItems, err := r.local.GetAll(ctx)
	if err != nil {
		r.log.Warn(ctx, "failed to read offline cart", "error", err)
		localItems = nil
	}

	var result LoadResult

	if token == "" {
		result.Cart.Items = localItems
		result.Cart.Recalculate()
		r.remember(result.Cart.Items)
		return result
	}

	serverCart, err := r.api.GetCart(ctx, token)
	if err != nil {
		r.log.Warn(ctx, "server cart unavailable, falling back to offline copy", "error", err)
		result.Cart.Items = localItems
		result.Cart.Recalculate()
		result.Advisory = "showing local cart: server unavailable"
		r.remember(result.Cart.Items)
		return result
	}

	merged := Merge(serverCart.Items, localItems)
	result.Cart.Items = merged
	if len(merged) == len(serverCart.Items) {
		// nothing local on top, the server totals stand
		result.Cart.Subtotal = serverCart.Subtotal
		result.Cart.Shipping = serverCart.Shipping
		result.Cart.Total = serverCart.Total
	} else {
		result.Cart.Recalculate()
	}
	r.remember(merged)
	return result
}

// Add puts an item into the cart. Authenticated sessions request the server
// add first and fall back to the offline store on failure, so the item is
// visible in at least one of the two stores after the call returns.
func (r *Reconciler) Add(ctx context.Context, token string, item models.CartItem) error {
	if token != "" {
		err := r.api.AddCartItem(ctx, token, item.ProductID, item.Quantity)
		if err == nil {
			return nil
		}
		r.log.Warn(ctx, "server add failed, writing to offline cart", "product_id", item.ProductID, "error", err)
	}
	return r.local.Add(ctx, item)
}

// Remove drops one unit of the item at index in the last loaded view. The
// local decrement is immediate; the matching server decrement is dispatched
// detached and best-effort. A server failure is logged, not rolled back: the
// next Load re-reconciles from the server.
func (r *Reconciler) Remove(ctx context.Context, token string, index int) error {
	r.mu.Lock()
	if index < 0 || index >= len(r.last) {
		r.mu.Unlock()
		return common.ErrItemIndexInvalid
	}
	item := r.last[index]
	if item.Quantity <= 1 {
		r.last = append(r.last[:index], r.last[index+1:]...)
	} else {
		r.last[index].Quantity--
	}
	r.mu.Unlock()

	if err := r.local.Decrement(ctx, item.ProductID, 1); err != nil {
		return err
	}

	if token != "" {
		detached := context.WithoutCancel(ctx)
		r.dispatch(func() {
			if err := r.api.RemoveCartItem(detached, token, item.ProductID, 1); err != nil {
				r.log.Warn(detached, "best-effort server cart decrement failed",
					"product_id", item.ProductID, "error", err)
			}
		})
	}
	return nil
}

// Clear empties the offline cart and requests a best-effort server clear.
// The server failure never blocks local completion.
func (r *Reconciler) Clear(ctx context.Context, token string) error {
	if err := r.local.DeleteAll(ctx); err != nil {
		return err
	}
	r.remember(nil)

	if token != "" {
		detached := context.WithoutCancel(ctx)
		r.dispatch(func() {
			if err := r.api.ClearCart(detached, token); err != nil {
				r.log.Warn(detached, "best-effort server cart clear failed", "error", err)
			}
		})
	}
	return nil
}

func (r *Reconciler) remember(items []models.CartItem) {
	r.mu.Lock()
	r.last = items
	r.mu.Unlock()
}
