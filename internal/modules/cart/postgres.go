package cart

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) ListItems(ctx context.Context, userID uuid.UUID) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, color, size, created_at, updated_at
		FROM cart_items WHERE user_id=$1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		var color, size sql.NullString
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity,
			&color, &size, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Color = color.String
		item.Size = size.String
		items = append(items, item)
	}
	if items == nil {
		items = []*Item{}
	}
	return items, rows.Err()
}

// Upsert relies on the (user_id, product_id, color, size) unique constraint:
// re-adding the same variant accumulates quantity instead of duplicating the
// line.
func (r *postgresRepo) Upsert(ctx context.Context, item *Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, color, size)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, product_id, color, size)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		item.ID, item.UserID, item.ProductID, item.Quantity, item.Color, item.Size)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity=$1, updated_at=$2 WHERE id=$3 AND user_id=$4`,
		quantity, time.Now(), itemID, userID)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return requireRow(res, itemID)
}

func (r *postgresRepo) Remove(ctx context.Context, userID, itemID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return requireRow(res, itemID)
}

func (r *postgresRepo) Clear(ctx context.Context, q Execer, userID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, itemID uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("cart item %s not found", itemID)
	}
	return nil
}
