package cart

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Execer is satisfied by *sql.DB and *sql.Tx so Clear can join the checkout
// transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository defines cart data access.
type Repository interface {
	// ListItems returns the user's cart lines, oldest first.
	ListItems(ctx context.Context, userID uuid.UUID) ([]*Item, error)

	// Upsert inserts the line or, when the same product/variant already
	// exists, adds to its quantity.
	Upsert(ctx context.Context, item *Item) error

	// UpdateQuantity sets the quantity of one cart line owned by the user.
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error

	// Remove deletes one cart line owned by the user.
	Remove(ctx context.Context, userID, itemID uuid.UUID) error

	// Clear empties the user's cart. Runs on the given Execer so checkout
	// can clear the cart inside the order transaction.
	Clear(ctx context.Context, q Execer, userID uuid.UUID) error
}
