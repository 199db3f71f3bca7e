// Package storage wires the local SQLite database: it runs the embedded
// goose migrations and hands out the repositories the client components use.
// The database is treated as a single-writer resource per client process;
// nothing coordinates concurrent processes sharing one file.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/storefront/internal/client/storage/cartitems"
	"github.com/dmitrijs2005/storefront/internal/client/storage/credentials"
	"github.com/dmitrijs2005/storefront/internal/client/storage/migrations"
)

// Repositories groups the local-store repositories.
type Repositories struct {
	Credentials credentials.Repository
	CartItems   cartitems.Repository
	DB          *sql.DB
}

// RunMigrations applies the embedded migrations to the given database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if necessary) the local database at dsn,
// migrates it and returns the repository set. The caller owns DB.Close.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		Credentials: credentials.NewSQLiteRepository(db),
		CartItems:   cartitems.NewSQLiteRepository(db),
		DB:          db,
	}, nil
}
