// Package cli provides the interactive storefront command-line client.
//
// It wires configuration, local storage, the gateway API client, the session
// guard, the cart reconciler, the order tracker and the payment controller
// into an interactive REPL. Typical flow: log in, fill the cart, check out
// and watch the order converge to PAID or PAYMENT_FAILED.
//
// Key features:
//   - Login / Logout with automatic forced sign-out at token expiry
//   - Cart view merged from the offline store and the server cart
//   - Checkout with background order status polling
//   - Payment retry for failed orders
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
