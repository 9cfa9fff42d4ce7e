// Package payment owns money movement against the hosted checkout provider:
// payment link creation, webhook reconciliation, and cancellation-triggered
// refunds. Fulfilment state lives in the order package; this package only
// touches an order's payment_status.
package payment

import (
	"time"

	"github.com/google/uuid"
)

// TxStatus is the lifecycle state of one payment attempt.
type TxStatus string

const (
	TxPending    TxStatus = "pending"    // link requested, awaiting payment
	TxProcessing TxStatus = "processing" // provider reports payment in flight
	TxCompleted  TxStatus = "completed"  // money captured
	TxCancelled  TxStatus = "cancelled"  // link cancelled before capture
	TxFailed     TxStatus = "failed"     // payment attempt failed or link expired
	TxRefunded   TxStatus = "refunded"   // captured money returned
)

// txRank orders statuses so reconciliation can reject stale or duplicate
// webhook reports: a transition is applied only when it moves strictly
// forward. refunded is reachable from completed only.
var txRank = map[TxStatus]int{
	TxPending:    0,
	TxProcessing: 1,
	TxCompleted:  2,
	TxCancelled:  2,
	TxFailed:     2,
	TxRefunded:   3,
}

// CanTransitionTo reports whether moving from s to next is a forward step.
func (s TxStatus) CanTransitionTo(next TxStatus) bool {
	if next == TxRefunded {
		return s == TxCompleted
	}
	nr, ok := txRank[next]
	if !ok {
		return false
	}
	return nr > txRank[s]
}

// RefundStatus is the lifecycle state of one refund attempt.
type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing" // provider accepted; completes asynchronously
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
)

// Transaction is one payment attempt for an order. ProviderOrderCode is the
// numeric identifier the provider echoes back in webhooks.
type Transaction struct {
	ID                uuid.UUID `json:"id"`
	OrderID           uuid.UUID `json:"order_id"`
	ProviderOrderCode int64     `json:"provider_order_code"`
	Amount            int64     `json:"amount"`
	Status            TxStatus  `json:"status"`
	Description       string    `json:"description,omitempty"`
	CheckoutURL       string    `json:"checkout_url,omitempty"`
	QRCode            string    `json:"qr_code,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Refund is one refund attempt against a transaction.
type Refund struct {
	ID               uuid.UUID    `json:"id"`
	TransactionID    uuid.UUID    `json:"transaction_id"`
	Amount           int64        `json:"amount"`
	Reason           string       `json:"reason,omitempty"`
	Status           RefundStatus `json:"status"`
	ProviderRefundID string       `json:"provider_refund_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// WebhookPayload is the provider's callback envelope. The signature covers
// the canonical form of Data and must verify before Data is trusted.
type WebhookPayload struct {
	Code      string      `json:"code"`
	Desc      string      `json:"desc"`
	Data      WebhookData `json:"data"`
	Signature string      `json:"signature"`
}

// WebhookData is the signed body of a provider callback.
type WebhookData struct {
	OrderCode int64  `json:"orderCode"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

// providerStatusMap translates the provider's status vocabulary into ours.
var providerStatusMap = map[string]TxStatus{
	"PENDING":    TxPending,
	"PROCESSING": TxProcessing,
	"PAID":       TxCompleted,
	"CANCELLED":  TxCancelled,
	"EXPIRED":    TxFailed,
	"FAILED":     TxFailed,
}
