package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

type postgresReader struct{ db *sql.DB }

// NewPostgresReader creates the product read contract over the shared pool.
func NewPostgresReader(db *sql.DB) Reader { return &postgresReader{db: db} }

func (r *postgresReader) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p := &Product{}
	var salePrice sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, sku, price, sale_price, stock, is_active, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &salePrice, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if salePrice.Valid {
		p.SalePrice = &salePrice.Int64
	}
	return p, nil
}

type stockLedger struct{}

// NewStockLedger creates the stock ledger. It is stateless; all writes go
// through the Execer passed per call so they join the caller's transaction.
func NewStockLedger() StockLedger { return stockLedger{} }

// Reserve uses a guarded decrement: the WHERE clause rejects the update when
// stock would go negative, and the row lock it takes serialises racing
// checkouts for the last units.
func (stockLedger) Reserve(ctx context.Context, q Execer, productID uuid.UUID, qty int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if affected == 0 {
		return apperr.Conflict("insufficient stock for product %s", productID)
	}
	return nil
}

func (stockLedger) Restore(ctx context.Context, q Execer, productID uuid.UUID, qty int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}
