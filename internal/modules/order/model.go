// Package order owns the order lifecycle: creation under transactional
// guarantees, the fulfilment status machine, cancellation with stock and
// coupon reversal, return requests, and the customer/admin query surface.
package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the fulfilment lifecycle state of an order.
type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusReturnRequested Status = "return_requested"
)

// PaymentStatus tracks money movement independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod selects how the order is paid.
type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "cod"    // cash on delivery
	MethodOnline PaymentMethod = "online" // hosted checkout link
)

// Order is a persisted customer order. Monetary fields are integer minor
// units and always satisfy Total = Subtotal + Tax + Shipping - Discount.
// Address snapshots are captured at order time and immutable thereafter.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	Status          Status          `json:"status"`
	Subtotal        int64           `json:"subtotal"`
	Tax             int64           `json:"tax"`
	Shipping        int64           `json:"shipping"`
	Discount        int64           `json:"discount"`
	Total           int64           `json:"total"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	ShippingAddress json.RawMessage `json:"shipping_address,omitempty"`
	BillingAddress  json.RawMessage `json:"billing_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []*Item         `json:"items,omitempty"`
	History         []*StatusChange `json:"history,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item is one line of an order, snapshotting product identity and price at
// purchase time. Immutable after creation.
type Item struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	TotalPrice  int64     `json:"total_price"`
	Color       string    `json:"color,omitempty"`
	Size        string    `json:"size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatusChange is one row of the append-only status history.
type StatusChange struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReturnItem names one order item (and how many units) in a return request.
type ReturnItem struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int       `json:"quantity"`
}

// ReturnRequest records a customer's wish to return delivered goods. The
// admin approval flow that reverses stock and payment lives elsewhere.
type ReturnRequest struct {
	ID        uuid.UUID    `json:"id"`
	OrderID   uuid.UUID    `json:"order_id"`
	UserID    uuid.UUID    `json:"user_id"`
	Reason    string       `json:"reason"`
	Items     []ReturnItem `json:"items"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// ── Request/response DTOs ─────────────────────────────────────────────────────

// ItemInput describes one requested product line.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// CreateRequest creates an order from an explicit item list.
type CreateRequest struct {
	Items           []ItemInput     `json:"items"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	BillingAddress  json.RawMessage `json:"billing_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// CheckoutRequest creates an order from the user's cart.
type CheckoutRequest struct {
	ShippingAddress json.RawMessage `json:"shipping_address"`
	BillingAddress  json.RawMessage `json:"billing_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// UpdateStatusRequest advances an order's fulfilment status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// CancelRequest carries the customer's cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ReturnRequestInput asks for a return of delivered items.
type ReturnRequestInput struct {
	Reason string       `json:"reason"`
	Items  []ReturnItem `json:"items"`
}

// CancelResult reports the outcome of a cancellation, including whether a
// refund was attempted and how it went.
type CancelResult struct {
	OrderID         uuid.UUID     `json:"order_id"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	RefundAttempted bool          `json:"refund_attempted"`
	RefundInitiated bool          `json:"refund_initiated"`
	Warning         string        `json:"warning,omitempty"`
}

// Stats is the admin aggregate over a date range.
type Stats struct {
	TotalOrders       int            `json:"total_orders"`
	CountsByStatus    map[Status]int `json:"counts_by_status"`
	Revenue           int64          `json:"revenue"`
	AverageOrderValue int64          `json:"average_order_value"`
}
