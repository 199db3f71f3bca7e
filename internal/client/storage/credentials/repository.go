// Package credentials stores the bearer credential in the local database.
// It is a small key/value table so future auth material (e.g. a refresh
// token) has a home without a schema change.
package credentials

import "context"

// TokenKey is the key under which the bearer token is stored.
const TokenKey = "token"

// Repository is the persistence contract for stored credentials.
// Get returns common.ErrorNotFound when the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
