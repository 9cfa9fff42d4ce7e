package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Reader is the read-only product lookup consumed by cart and order flows.
type Reader interface {
	// GetProduct fetches the current catalog snapshot for a product.
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
}

// Execer is satisfied by both *sql.DB and *sql.Tx, letting the stock ledger
// run inside whatever transaction encloses the order mutation.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// StockLedger performs the atomic stock decrement/restore pair. Reserve must
// run on the same transaction as the order-item insertion so that row-level
// locking serialises concurrent reservations for the same product.
type StockLedger interface {
	// Reserve decrements stock, failing with a conflict error when fewer
	// than qty units remain.
	Reserve(ctx context.Context, q Execer, productID uuid.UUID, qty int) error

	// Restore increments stock back, used on order cancellation.
	Restore(ctx context.Context, q Execer, productID uuid.UUID, qty int) error
}
