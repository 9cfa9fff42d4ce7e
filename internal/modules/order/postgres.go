package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/cart"
	"github.com/minhvo/storefront-backend/internal/modules/catalog"
	"github.com/minhvo/storefront-backend/internal/modules/coupon"
)

type postgresRepo struct {
	db      *sql.DB
	stock   catalog.StockLedger
	coupons coupon.Ledger
	carts   cart.Repository
}

// NewPostgresRepository wires order persistence with the ledgers that must
// join its transactions.
func NewPostgresRepository(db *sql.DB, stock catalog.StockLedger, coupons coupon.Ledger, carts cart.Repository) Repository {
	return &postgresRepo{db: db, stock: stock, coupons: coupons, carts: carts}
}

// nextOrderNumber allocates the per-day sequence behind order numbers like
// ORD-20250901-0042. The upsert takes a row lock on the day's counter, so
// concurrent checkouts get distinct numbers.
func nextOrderNumber(ctx context.Context, tx *sql.Tx, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	var n int
	err := tx.QueryRowContext(ctx, `
		INSERT INTO order_counters (day, counter) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET counter = order_counters.counter + 1
		RETURNING counter`, day).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%04d", day, n), nil
}

func (r *postgresRepo) Create(ctx context.Context, o *Order, opts CreateOptions) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	number, err := nextOrderNumber(ctx, tx, time.Now())
	if err != nil {
		return err
	}
	o.OrderNumber = number

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		  (id, user_id, order_number, status, subtotal, tax, shipping, discount, total,
		   payment_method, payment_status, shipping_address, billing_address, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.UserID, o.OrderNumber, o.Status,
		o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
		o.PaymentMethod, o.PaymentStatus,
		nullableJSON(o.ShippingAddress), nullableJSON(o.BillingAddress), o.Notes)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		if err := r.stock.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items
			  (id, order_id, product_id, product_name, sku, quantity, unit_price, total_price, color, size)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			item.ID, o.ID, item.ProductID, item.ProductName, item.SKU,
			item.Quantity, item.UnitPrice, item.TotalPrice, item.Color, item.Size)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if opts.Coupon != nil {
		if err := r.coupons.RecordUsage(ctx, tx, opts.Coupon, o.UserID, o.ID); err != nil {
			return err
		}
	}

	if err := appendHistory(ctx, tx, o.ID, o.Status, "order created"); err != nil {
		return err
	}

	if opts.ClearCartUserID != nil {
		if err := r.carts.Clear(ctx, tx, *opts.ClearCartUserID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func appendHistory(ctx context.Context, q interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}, orderID uuid.UUID, status Status, note string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, status, note)
		VALUES ($1,$2,$3,$4)`, uuid.New(), orderID, status, note)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

const selectOrderSQL = `
	SELECT id, user_id, order_number, status, subtotal, tax, shipping, discount, total,
	       payment_method, payment_status, shipping_address, billing_address, notes,
	       delivered_at, created_at, updated_at
	FROM orders`

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var shippingAddr, billingAddr []byte
	var notes sql.NullString
	var deliveredAt sql.NullTime
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus,
		&shippingAddr, &billingAddr, &notes,
		&deliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.ShippingAddress = shippingAddr
	o.BillingAddress = billingAddr
	o.Notes = notes.String
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	return o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderSQL+` WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return r.loadAssociations(ctx, o)
}

func (r *postgresRepo) loadAssociations(ctx context.Context, o *Order) (*Order, error) {
	items, err := r.listItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	history, err := r.listHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.History = history
	return o, nil
}

func (r *postgresRepo) listItems(ctx context.Context, orderID uuid.UUID) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, sku, quantity, unit_price, total_price, color, size, created_at
		FROM order_items WHERE order_id=$1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		var color, size sql.NullString
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.SKU,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &color, &size, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Color = color.String
		item.Size = size.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *postgresRepo) listHistory(ctx context.Context, orderID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, status, note, created_at
		FROM order_status_history WHERE order_id=$1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var history []*StatusChange
	for rows.Next() {
		h := &StatusChange{}
		var note sql.NullString
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &note, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Note = note.String
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	f = f.normalized()
	where, args := f.build()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectOrderSQL, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, note string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var deliveredAt interface{}
	if status == StatusDelivered {
		deliveredAt = time.Now()
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status=$1, delivered_at=COALESCE($2, delivered_at), updated_at=NOW()
		WHERE id=$3`, status, deliveredAt, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("order %s not found", id)
	}

	if err := appendHistory(ctx, tx, id, status, note); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) Cancel(ctx context.Context, o *Order, reason string, paymentStatus PaymentStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status=$1, payment_status=$2, updated_at=NOW() WHERE id=$3`,
		StatusCancelled, paymentStatus, o.ID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	for _, item := range o.Items {
		if err := r.stock.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if err := r.coupons.ReverseUsage(ctx, tx, o.ID); err != nil {
		return err
	}

	note := "order cancelled"
	if reason != "" {
		note = "order cancelled: " + reason
	}
	if err := appendHistory(ctx, tx, o.ID, StatusCancelled, note); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) MarkPaid(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}

	newStatus := status
	if status == StatusPending {
		newStatus = StatusProcessing
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET payment_status=$1, status=$2, updated_at=NOW() WHERE id=$3`,
		PaymentPaid, newStatus, id)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}

	if newStatus != status {
		if err := appendHistory(ctx, tx, id, newStatus, "payment received"); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *postgresRepo) CreateReturn(ctx context.Context, ret *ReturnRequest) error {
	itemsJSON, err := json.Marshal(ret.Items)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_returns (id, order_id, user_id, reason, items, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ret.ID, ret.OrderID, ret.UserID, ret.Reason, itemsJSON, ret.Status)
	if err != nil {
		return fmt.Errorf("insert return: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2`,
		StatusReturnRequested, ret.OrderID)
	if err != nil {
		return fmt.Errorf("mark return requested: %w", err)
	}

	note := "return requested"
	if ret.Reason != "" {
		note = "return requested: " + ret.Reason
	}
	if err := appendHistory(ctx, tx, ret.OrderID, StatusReturnRequested, note); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	stats := &Stats{CountsByStatus: map[Status]int{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status`, from, to)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.CountsByStatus[status] = count
		stats.TotalOrders += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var paidCount int
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*) FROM orders
		WHERE created_at >= $1 AND created_at < $2 AND payment_status = $3`,
		from, to, PaymentPaid).Scan(&stats.Revenue, &paidCount)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	if paidCount > 0 {
		stats.AverageOrderValue = stats.Revenue / int64(paidCount)
	}
	return stats, nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
