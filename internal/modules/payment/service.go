package payment

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
	"github.com/minhvo/storefront-backend/internal/modules/order"
)

// OrderStore is the slice of order persistence the reconciler needs. The
// order repository satisfies it.
type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
}

// Notifier is the best-effort event path for payment events.
type Notifier interface {
	PaymentReceived(ctx context.Context, orderID uuid.UUID, amount int64)
}

// Service reconciles local payment state against the provider: link
// creation, webhook ingestion, and cancellation-triggered refunds.
type Service interface {
	// CreateLink requests a hosted checkout link for an online order. The
	// pending transaction is committed locally before the provider call so
	// a webhook arriving early still finds its transaction.
	CreateLink(ctx context.Context, user identity.User, orderID uuid.UUID) (*Transaction, error)

	// ListForOrder returns the order's payment attempts; customers only see
	// their own.
	ListForOrder(ctx context.Context, user identity.User, orderID uuid.UUID) ([]*Transaction, error)

	// HandleWebhook verifies and applies one provider callback. Duplicate
	// and stale reports are acknowledged without side effects.
	HandleWebhook(ctx context.Context, payload WebhookPayload) error

	// OnOrderCancelled settles provider-side state for a cancelling order.
	OnOrderCancelled(ctx context.Context, orderID uuid.UUID, paid bool) order.RefundOutcome
}

type service struct {
	repo     Repository
	orders   OrderStore
	gateway  Gateway
	signer   *Signer
	notifier Notifier
	now      func() time.Time
}

// NewService creates the payment service.
func NewService(repo Repository, orders OrderStore, gateway Gateway, signer *Signer, notifier Notifier) Service {
	return &service{
		repo:     repo,
		orders:   orders,
		gateway:  gateway,
		signer:   signer,
		notifier: notifier,
		now:      time.Now,
	}
}

// nextOrderCode builds a numeric provider order code unique enough for
// link-creation retries: millisecond timestamp plus three random digits.
func (s *service) nextOrderCode() int64 {
	return s.now().UnixMilli()*1000 + rand.Int63n(1000)
}

func (s *service) CreateLink(ctx context.Context, user identity.User, orderID uuid.UUID) (*Transaction, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID && !user.IsAdmin() {
		return nil, apperr.Permission("order %s does not belong to this account", orderID)
	}
	if o.PaymentMethod != order.MethodOnline {
		return nil, apperr.Validation("order %s is not an online-payment order", o.OrderNumber)
	}
	if o.PaymentStatus != order.PaymentPending {
		return nil, apperr.Conflict("order %s payment is already %s", o.OrderNumber, o.PaymentStatus)
	}

	// An open link can simply be handed out again.
	open, err := s.repo.LatestOpen(ctx, orderID)
	switch {
	case err == nil && open.CheckoutURL != "":
		return open, nil
	case err != nil && apperr.KindOf(err) != apperr.KindNotFound:
		return nil, err
	}

	t := &Transaction{
		ID:                uuid.New(),
		OrderID:           orderID,
		ProviderOrderCode: s.nextOrderCode(),
		Amount:            o.Total,
		Status:            TxPending,
		Description:       "order " + o.OrderNumber,
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, LinkRequest{
		OrderCode:   t.ProviderOrderCode,
		Amount:      t.Amount,
		Description: t.Description,
	})
	if err != nil {
		if uerr := s.repo.UpdateStatus(ctx, t.ID, TxPending, TxFailed); uerr != nil {
			log.Printf("payment: marking transaction %s failed: %v", t.ID, uerr)
		}
		return nil, err
	}

	if err := s.repo.SetLink(ctx, t.ID, link.CheckoutURL, link.QRCode); err != nil {
		return nil, err
	}
	t.CheckoutURL = link.CheckoutURL
	t.QRCode = link.QRCode
	return t, nil
}

func (s *service) ListForOrder(ctx context.Context, user identity.User, orderID uuid.UUID) ([]*Transaction, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID && !user.IsAdmin() {
		return nil, apperr.Permission("order %s does not belong to this account", orderID)
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *service) HandleWebhook(ctx context.Context, payload WebhookPayload) error {
	if !s.signer.Verify(webhookFields(payload.Data), payload.Signature) {
		return apperr.Signature("webhook signature mismatch for order code %d", payload.Data.OrderCode)
	}

	next, ok := providerStatusMap[payload.Data.Status]
	if !ok {
		return apperr.Validation("webhook reported unknown status %q", payload.Data.Status)
	}

	t, err := s.repo.GetByProviderCode(ctx, payload.Data.OrderCode)
	if err != nil {
		return err
	}

	// Duplicate delivery: same terminal report twice. Acknowledge, apply
	// nothing.
	if t.Status == next {
		return nil
	}
	// Stale or out-of-order report: never regress.
	if !t.Status.CanTransitionTo(next) {
		log.Printf("payment: ignoring stale webhook for tx %s (%s -> %s)", t.ID, t.Status, next)
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, t.ID, t.Status, next); err != nil {
		// A concurrent delivery won the compare-and-swap; treat ours as a
		// duplicate.
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil
		}
		return err
	}

	if next == TxCompleted {
		if err := s.orders.MarkPaid(ctx, t.OrderID); err != nil {
			return err
		}
		s.notifier.PaymentReceived(ctx, t.OrderID, t.Amount)
	}
	return nil
}

// OnOrderCancelled implements order.PaymentCoordinator. A captured payment
// gets a refund attempt; an open link gets cancelled at the provider so a
// stale QR cannot be paid afterwards. Every step is fault-tolerant: failures
// come back as warnings, never as blocking errors.
func (s *service) OnOrderCancelled(ctx context.Context, orderID uuid.UUID, paid bool) order.RefundOutcome {
	if paid {
		t, err := s.repo.LatestCompleted(ctx, orderID)
		if err == nil {
			return s.refund(ctx, t)
		}
		if apperr.KindOf(err) != apperr.KindNotFound {
			return order.RefundOutcome{Warning: "looking up payment: " + err.Error()}
		}
		// Marked paid but no captured transaction (e.g. manual COD
		// settlement). Nothing to refund; fall through to link cleanup.
	}
	return s.cancelOpenLink(ctx, orderID)
}

func (s *service) refund(ctx context.Context, t *Transaction) order.RefundOutcome {
	ref := &Refund{
		ID:            uuid.New(),
		TransactionID: t.ID,
		Amount:        t.Amount,
		Reason:        "order cancelled",
		Status:        RefundPending,
	}
	if err := s.repo.CreateRefund(ctx, ref); err != nil {
		return order.RefundOutcome{Warning: "recording refund: " + err.Error()}
	}

	providerRefundID, err := s.gateway.Refund(ctx, t.ProviderOrderCode, nil, ref.Reason)
	if err != nil {
		if uerr := s.repo.UpdateRefund(ctx, ref.ID, RefundFailed, ""); uerr != nil {
			log.Printf("payment: marking refund %s failed: %v", ref.ID, uerr)
		}
		return order.RefundOutcome{Attempted: true, Warning: "refund call failed: " + err.Error()}
	}

	// The provider completes refunds asynchronously; processing is our
	// terminal-enough state until its callback lands.
	if err := s.repo.UpdateRefund(ctx, ref.ID, RefundProcessing, providerRefundID); err != nil {
		log.Printf("payment: updating refund %s: %v", ref.ID, err)
	}
	if err := s.repo.UpdateStatus(ctx, t.ID, TxCompleted, TxRefunded); err != nil {
		log.Printf("payment: marking transaction %s refunded: %v", t.ID, err)
	}
	return order.RefundOutcome{Attempted: true, Initiated: true}
}

func (s *service) cancelOpenLink(ctx context.Context, orderID uuid.UUID) order.RefundOutcome {
	t, err := s.repo.LatestOpen(ctx, orderID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return order.RefundOutcome{}
		}
		return order.RefundOutcome{Warning: "looking up payment link: " + err.Error()}
	}

	if err := s.gateway.Cancel(ctx, t.ProviderOrderCode, "order cancelled"); err != nil {
		return order.RefundOutcome{Warning: "cancelling payment link: " + err.Error()}
	}
	if err := s.repo.UpdateStatus(ctx, t.ID, t.Status, TxCancelled); err != nil {
		log.Printf("payment: marking transaction %s cancelled: %v", t.ID, err)
	}
	return order.RefundOutcome{}
}
