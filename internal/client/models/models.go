// Package models defines the client-side data model: session claims, cart
// items, orders and payment attempts. These types mirror the JSON wire
// contracts of the collaborating services.
package models

import "time"

// Claims are the token claims the client cares about. Exp is Unix seconds.
type Claims struct {
	Sub  string
	Role string
	Exp  int64
}

// Session is derived entirely from the stored token; it is never persisted
// separately from it.
type Session struct {
	Token     string
	Claims    Claims
	ExpiresAt time.Time
}

// CartItem is a single cart line. Two provenances exist transiently during
// merge: a local (offline store) copy and the server-authoritative copy.
type CartItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

// Valid reports whether the item satisfies the schema the local store
// accepts: positive quantity and non-negative price. Rows that fail this
// check are dropped rather than repaired.
func (i CartItem) Valid() bool {
	return i.ProductID > 0 && i.Quantity > 0 && i.Price >= 0
}

// Cart is a collection of items plus the totals the cart service reports.
type Cart struct {
	Items    []CartItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Shipping float64    `json:"shipping"`
	Total    float64    `json:"total"`
}

// Recalculate recomputes the totals from the items, using the same flat
// shipping rule the cart service applies. Used for merged and offline views
// where no server totals are available.
func (c *Cart) Recalculate() {
	subtotal := 0.0
	for _, item := range c.Items {
		subtotal += item.Price * float64(item.Quantity)
	}
	shipping := 0.0
	if subtotal > 0 {
		shipping = 5.0
	}
	c.Subtotal = subtotal
	c.Shipping = shipping
	c.Total = subtotal + shipping
}

// Product is a catalog record as served by the product service.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderStatus is the order-level lifecycle status owned by the order service.
// The client holds only a read-through cached copy refreshed by polling.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusPending        OrderStatus = "PENDING"
	StatusPaid           OrderStatus = "PAID"
	StatusPaymentFailed  OrderStatus = "PAYMENT_FAILED"
)

// TerminalForUI reports whether polling stops at this status. Both terminal
// statuses are re-enterable: a failed order can be retried.
func (s OrderStatus) TerminalForUI() bool {
	return s == StatusPaid || s == StatusPaymentFailed
}

// NeedsRefresh reports whether the order history sweep should keep refreshing
// an order with this status. Failed orders stay in the set because a retry
// can move them back into flight.
func (s OrderStatus) NeedsRefresh() bool {
	switch s {
	case StatusPendingPayment, StatusPending, StatusPaymentFailed:
		return true
	default:
		return false
	}
}

// Known reports whether the status is one of the recognized lifecycle states.
// Polling ignores unrecognized statuses instead of acting on them.
func (s OrderStatus) Known() bool {
	switch s {
	case StatusPendingPayment, StatusPending, StatusPaid, StatusPaymentFailed:
		return true
	default:
		return false
	}
}

// Order is the client's cached copy of a server-owned order. Identity is
// immutable once created.
type Order struct {
	ID        int64       `json:"id"`
	Status    OrderStatus `json:"status"`
	Items     []CartItem  `json:"items"`
	CreatedAt string      `json:"created_at"`
}

// PaymentOutcome classifies a single payment attempt. It is attempt-level
// and deliberately distinct from the order-level PENDING status.
type PaymentOutcome string

const (
	PaymentSuccess PaymentOutcome = "SUCCESS"
	PaymentPending PaymentOutcome = "PENDING"
	PaymentFailure PaymentOutcome = "FAILURE"
)

// PaymentResult is the classified outcome of one payment attempt. It is
// ephemeral: not persisted beyond the current retry flow.
type PaymentResult struct {
	OrderID int64
	Outcome PaymentOutcome
	Body    map[string]any
}
