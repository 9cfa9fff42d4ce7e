package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates the payment repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

const selectTransactionSQL = `
	SELECT id, order_id, provider_order_code, amount, status, description,
	       checkout_url, qr_code, created_at, updated_at
	FROM payment_transactions`

func (r *postgresRepository) CreateTransaction(ctx context.Context, t *Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_transactions
			(id, order_id, provider_order_code, amount, status, description,
			 checkout_url, qr_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		t.ID, t.OrderID, t.ProviderOrderCode, t.Amount, t.Status,
		t.Description, t.CheckoutURL, t.QRCode)
	return err
}

func (r *postgresRepository) GetByProviderCode(ctx context.Context, code int64) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactionSQL+` WHERE provider_order_code = $1`, code)
	return scanTransaction(row)
}

func (r *postgresRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTransactionSQL+` WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *postgresRepository) LatestCompleted(ctx context.Context, orderID uuid.UUID) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactionSQL+`
		WHERE order_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, orderID, TxCompleted)
	return scanTransaction(row)
}

func (r *postgresRepository) LatestOpen(ctx context.Context, orderID uuid.UUID) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactionSQL+`
		WHERE order_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`, orderID, TxPending, TxProcessing)
	return scanTransaction(row)
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to TxStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Conflict("payment transaction %s no longer in status %s", id, from)
	}
	return nil
}

func (r *postgresRepository) SetLink(ctx context.Context, id uuid.UUID, checkoutURL, qrCode string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET checkout_url = $2, qr_code = $3, updated_at = NOW()
		WHERE id = $1`, id, checkoutURL, qrCode)
	return err
}

func (r *postgresRepository) CreateRefund(ctx context.Context, ref *Refund) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_refunds
			(id, transaction_id, amount, reason, status, provider_refund_id,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		ref.ID, ref.TransactionID, ref.Amount, ref.Reason, ref.Status, ref.ProviderRefundID)
	return err
}

func (r *postgresRepository) UpdateRefund(ctx context.Context, id uuid.UUID, status RefundStatus, providerRefundID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_refunds
		SET status = $2, provider_refund_id = $3, updated_at = NOW()
		WHERE id = $1`, id, status, providerRefundID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.OrderID, &t.ProviderOrderCode, &t.Amount, &t.Status,
		&t.Description, &t.CheckoutURL, &t.QRCode, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("payment transaction not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
