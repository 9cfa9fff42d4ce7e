package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/coupon"
)

// CreateOptions carries the side effects that must commit atomically with
// the order insert.
type CreateOptions struct {
	// Coupon, when set, records usage and bumps the coupon counter inside
	// the same transaction.
	Coupon *coupon.Discount

	// ClearCartUserID, when set, empties that user's cart inside the same
	// transaction (cart-based checkout).
	ClearCartUserID *uuid.UUID
}

// Repository defines order persistence. Multi-row operations run as a single
// transaction with commit-or-rollback semantics.
type Repository interface {
	// Create persists the order, its items, the initial history row, the
	// stock reservations, and any coupon usage as one atomic unit. The
	// generated order number is written back onto o.
	Create(ctx context.Context, o *Order, opts CreateOptions) error

	// GetByID loads an order with items and status history.
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// List returns a page of orders matching the filter plus the unpaged
	// match count.
	List(ctx context.Context, f ListFilter) ([]*Order, int, error)

	// UpdateStatus writes the new status and appends a history row
	// atomically. DeliveredAt is stamped when status becomes delivered.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, note string) error

	// Cancel transitions the order to cancelled, restores stock for every
	// item, reverses coupon usage, sets the payment status, and appends a
	// history row, all in one transaction.
	Cancel(ctx context.Context, o *Order, reason string, paymentStatus PaymentStatus) error

	// MarkPaid sets payment_status to paid and advances a pending order to
	// processing with a history row.
	MarkPaid(ctx context.Context, id uuid.UUID) error

	// CreateReturn inserts the return record and transitions the order to
	// return_requested in one transaction.
	CreateReturn(ctx context.Context, ret *ReturnRequest) error

	// Stats aggregates counts, revenue, and average order value over a
	// created_at range.
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
}
