package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines payment persistence.
type Repository interface {
	// CreateTransaction inserts a new payment attempt.
	CreateTransaction(ctx context.Context, t *Transaction) error

	// GetByProviderCode looks a transaction up by the code the provider
	// echoes back in webhooks.
	GetByProviderCode(ctx context.Context, code int64) (*Transaction, error)

	// ListByOrder returns all payment attempts for an order, newest first.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error)

	// LatestCompleted returns the most recent completed transaction for an
	// order, or a not-found error when no payment was ever captured.
	LatestCompleted(ctx context.Context, orderID uuid.UUID) (*Transaction, error)

	// LatestOpen returns the most recent pending or processing transaction
	// for an order, or a not-found error.
	LatestOpen(ctx context.Context, orderID uuid.UUID) (*Transaction, error)

	// UpdateStatus moves a transaction from one status to another as a
	// compare-and-swap; a concurrent writer that got there first makes it
	// fail with a conflict error.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to TxStatus) error

	// SetLink stores the checkout URL and QR payload returned by the
	// provider.
	SetLink(ctx context.Context, id uuid.UUID, checkoutURL, qrCode string) error

	// CreateRefund inserts a refund attempt.
	CreateRefund(ctx context.Context, r *Refund) error

	// UpdateRefund sets the refund's status and provider identifier.
	UpdateRefund(ctx context.Context, id uuid.UUID, status RefundStatus, providerRefundID string) error
}
