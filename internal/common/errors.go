// Package common defines shared constants and sentinel errors used across
// the storefront client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Cart errors.
	ErrCartEmpty        = errors.New("cart is empty")
	ErrItemIndexInvalid = errors.New("item index out of range")

	// Order errors.
	ErrOrderNotFound = errors.New("order not found")
)
