package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/common"
)

// ShowCart prints the merged cart view. It works without a session: the
// offline copy alone is shown then, and a degraded view carries an advisory.
func (a *App) ShowCart(ctx context.Context) error {
	res := a.cart.Load(ctx, a.currentToken(ctx))

	if res.Advisory != "" {
		printlnFn(res.Advisory)
	}
	if len(res.Cart.Items) == 0 {
		printlnFn("Cart is empty")
		return nil
	}
	for i, item := range res.Cart.Items {
		printlnFn(fmt.Sprintf("%d. %s x%d @ %.2f", i, item.Name, item.Quantity, item.Price))
	}
	printlnFn(fmt.Sprintf("Subtotal: %.2f  Shipping: %.2f  Total: %.2f",
		res.Cart.Subtotal, res.Cart.Shipping, res.Cart.Total))
	return nil
}

// AddItem adds a product to the cart: add <product_id> [quantity]. Catalog
// lookup failures do not block the add; the item goes in without name/price
// and the next reconciliation against the server fills the gaps.
func (a *App) AddItem(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: add <product_id> [quantity]")
		return nil
	}

	productID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || productID <= 0 {
		printlnFn("Invalid product id:", args[0])
		return nil
	}

	quantity := int64(1)
	if len(args) > 1 {
		quantity, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil || quantity <= 0 {
			printlnFn("Invalid quantity:", args[1])
			return nil
		}
	}

	item := models.CartItem{ProductID: productID, Quantity: quantity}
	if p, perr := a.api.GetProduct(ctx, productID); perr == nil {
		item.Name = p.Name
		item.Price = p.Price
	}

	if err := a.cart.Add(ctx, a.currentToken(ctx), item); err != nil {
		printlnFn("Failed to add item:", err.Error())
		return err
	}
	printlnFn("Added to cart")
	return nil
}

// RemoveItem drops one unit of the cart line at the given index from the last
// shown view: remove <n>.
func (a *App) RemoveItem(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: remove <line number>")
		return nil
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		printlnFn("Invalid line number:", args[0])
		return nil
	}

	if err := a.cart.Remove(ctx, a.currentToken(ctx), index); err != nil {
		if errors.Is(err, common.ErrItemIndexInvalid) {
			printlnFn("No such cart line, run 'cart' first")
			return nil
		}
		printlnFn("Failed to remove item:", err.Error())
		return err
	}
	printlnFn("Removed one unit")
	return nil
}

// ClearCart empties the cart in both stores.
func (a *App) ClearCart(ctx context.Context) error {
	if err := a.cart.Clear(ctx, a.currentToken(ctx)); err != nil {
		printlnFn("Failed to clear cart:", err.Error())
		return err
	}
	printlnFn("Cart cleared")
	return nil
}
