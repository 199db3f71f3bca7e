// Package cartitems stores the offline copy of the cart in the local
// database. It is the fallback store when the server cart is unreachable and
// the only store for unauthenticated sessions.
package cartitems

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/client/models"
)

// Repository is the persistence contract for the offline cart.
type Repository interface {
	// GetAll lists the stored items. Rows failing the item schema check are
	// dropped, not repaired or surfaced.
	GetAll(ctx context.Context) ([]models.CartItem, error)

	// Add upserts an item; on conflict the stored quantity is increased and
	// name/price refreshed.
	Add(ctx context.Context, item models.CartItem) error

	// Decrement lowers the stored quantity and deletes the row once it
	// reaches zero. Decrementing an absent product is a no-op.
	Decrement(ctx context.Context, productID, quantity int64) error

	// DeleteAll empties the offline cart.
	DeleteAll(ctx context.Context) error
}
