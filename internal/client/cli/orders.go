package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/payment"
	"github.com/dmitrijs2005/storefront/internal/common"
)

// Checkout creates an order from the cart and starts background status
// polling. Requires a live session.
func (a *App) Checkout(ctx context.Context) error {
	token, ok := a.requireToken(ctx)
	if !ok {
		return nil
	}

	if view := a.cart.Load(ctx, token); len(view.Cart.Items) == 0 {
		printlnFn("Cart is empty, add items first")
		return common.ErrCartEmpty
	}

	order, err := a.orders.Create(ctx, token)
	if err != nil {
		printlnFn("Checkout failed:", err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("Order %d created, status %s", order.ID, order.Status))
	printlnFn("Watching order status...")
	return nil
}

// Orders lists the session's orders and arms the history sweep while any of
// them still needs refreshing.
func (a *App) Orders(ctx context.Context) error {
	token, ok := a.requireToken(ctx)
	if !ok {
		return nil
	}

	list, err := a.orders.WatchAll(ctx, token)
	if err != nil {
		printlnFn("Failed to load orders:", err.Error())
		return err
	}
	if len(list) == 0 {
		printlnFn("No orders yet")
		return nil
	}
	for _, order := range list {
		printlnFn(fmt.Sprintf("order %d  %s  created %s", order.ID, order.Status, order.CreatedAt))
	}
	return nil
}

// Retry issues a payment attempt for the active order: retry [method].
// Only one attempt may be in flight at a time; the affordance stays disabled
// until the previous attempt resolves.
func (a *App) Retry(ctx context.Context, args []string) error {
	token, ok := a.requireToken(ctx)
	if !ok {
		return nil
	}

	order, ok := a.orders.Current()
	if !ok {
		printlnFn("No active order, run 'checkout' first")
		return nil
	}

	a.mu.Lock()
	if a.retryInFlight {
		a.mu.Unlock()
		printlnFn("A payment attempt is already in progress")
		return nil
	}
	a.retryInFlight = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.retryInFlight = false
		a.mu.Unlock()
	}()

	method := payment.DefaultMethod
	if len(args) > 0 {
		method = args[0]
	}

	result, err := a.payment.Retry(ctx, token, order.ID, method)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) {
			printlnFn(fmt.Sprintf("Payment failed (status %d): %s", statusErr.Code, statusErr.Body))
		} else {
			printlnFn("Payment attempt failed:", err.Error())
		}
		// the order may have moved to PAYMENT_FAILED; keep watching it
		a.orders.StartPolling(order.ID, token)
		return err
	}

	switch result.Outcome {
	case models.PaymentSuccess:
		printlnFn("Payment accepted")
	case models.PaymentPending:
		printlnFn("Payment pending, the order will update shortly")
	}
	a.orders.StartPolling(order.ID, token)
	return nil
}
