package cartitems

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetAll lists stored items in product id order. Rows that fail the schema
// check (non-positive quantity, negative price) are skipped.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.CartItem, error) {
	query := `SELECT product_id, quantity, name, price FROM cart_items ORDER BY product_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select cart items: %w", err)
	}
	defer rows.Close()

	var result []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		if !item.Valid() {
			continue
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}
	return result, nil
}

// Add upserts the item, accumulating quantity on conflict.
func (r *SQLiteRepository) Add(ctx context.Context, item models.CartItem) error {
	query := `INSERT INTO cart_items (product_id, quantity, name, price)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(product_id) DO UPDATE SET
				quantity = cart_items.quantity + excluded.quantity,
				name = excluded.name,
				price = excluded.price`
	_, err := r.db.ExecContext(ctx, query, item.ProductID, item.Quantity, item.Name, item.Price)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// Decrement lowers the quantity and removes the row at zero or below. The
// update and the cleanup run in one transaction when the repository is bound
// to a *sql.DB.
func (r *SQLiteRepository) Decrement(ctx context.Context, productID, quantity int64) error {
	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return decrement(ctx, tx, productID, quantity)
		})
	}
	return decrement(ctx, r.db, productID, quantity)
}

func decrement(ctx context.Context, db dbx.DBTX, productID, quantity int64) error {
	update := `UPDATE cart_items SET quantity = quantity - ? WHERE product_id = ?`
	if _, err := db.ExecContext(ctx, update, quantity, productID); err != nil {
		return fmt.Errorf("failed to decrement cart item: %w", err)
	}
	cleanup := `DELETE FROM cart_items WHERE product_id = ? AND quantity <= 0`
	if _, err := db.ExecContext(ctx, cleanup, productID); err != nil {
		return fmt.Errorf("failed to clean up cart item: %w", err)
	}
	return nil
}

// DeleteAll empties the table.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	return nil
}
