package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
	"github.com/minhvo/storefront-backend/internal/modules/order"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakePayRepo struct {
	transactions []*Transaction
	refunds      []*Refund

	latestOpenErr error
}

func (r *fakePayRepo) CreateTransaction(ctx context.Context, t *Transaction) error {
	r.transactions = append(r.transactions, t)
	return nil
}

func (r *fakePayRepo) GetByProviderCode(ctx context.Context, code int64) (*Transaction, error) {
	for _, t := range r.transactions {
		if t.ProviderOrderCode == code {
			return t, nil
		}
	}
	return nil, apperr.NotFound("payment transaction not found")
}

func (r *fakePayRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error) {
	var out []*Transaction
	for _, t := range r.transactions {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakePayRepo) LatestCompleted(ctx context.Context, orderID uuid.UUID) (*Transaction, error) {
	for i := len(r.transactions) - 1; i >= 0; i-- {
		t := r.transactions[i]
		if t.OrderID == orderID && t.Status == TxCompleted {
			return t, nil
		}
	}
	return nil, apperr.NotFound("payment transaction not found")
}

func (r *fakePayRepo) LatestOpen(ctx context.Context, orderID uuid.UUID) (*Transaction, error) {
	if r.latestOpenErr != nil {
		return nil, r.latestOpenErr
	}
	for i := len(r.transactions) - 1; i >= 0; i-- {
		t := r.transactions[i]
		if t.OrderID == orderID && (t.Status == TxPending || t.Status == TxProcessing) {
			return t, nil
		}
	}
	return nil, apperr.NotFound("payment transaction not found")
}

func (r *fakePayRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to TxStatus) error {
	for _, t := range r.transactions {
		if t.ID == id {
			if t.Status != from {
				return apperr.Conflict("payment transaction %s no longer in status %s", id, from)
			}
			t.Status = to
			return nil
		}
	}
	return apperr.NotFound("payment transaction not found")
}

func (r *fakePayRepo) SetLink(ctx context.Context, id uuid.UUID, checkoutURL, qrCode string) error {
	for _, t := range r.transactions {
		if t.ID == id {
			t.CheckoutURL = checkoutURL
			t.QRCode = qrCode
			return nil
		}
	}
	return apperr.NotFound("payment transaction not found")
}

func (r *fakePayRepo) CreateRefund(ctx context.Context, ref *Refund) error {
	r.refunds = append(r.refunds, ref)
	return nil
}

func (r *fakePayRepo) UpdateRefund(ctx context.Context, id uuid.UUID, status RefundStatus, providerRefundID string) error {
	for _, ref := range r.refunds {
		if ref.ID == id {
			ref.Status = status
			ref.ProviderRefundID = providerRefundID
			return nil
		}
	}
	return apperr.NotFound("refund not found")
}

type fakeOrders struct {
	orders map[uuid.UUID]*order.Order
	paid   []uuid.UUID
}

func (o *fakeOrders) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	v, ok := o.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return v, nil
}

func (o *fakeOrders) MarkPaid(ctx context.Context, id uuid.UUID) error {
	o.paid = append(o.paid, id)
	return nil
}

type fakeGateway struct {
	link    *LinkResult
	linkErr error

	refundID  string
	refundErr error
	refunded  []int64

	cancelErr error
	cancelled []int64
}

func (g *fakeGateway) CreatePaymentLink(ctx context.Context, req LinkRequest) (*LinkResult, error) {
	return g.link, g.linkErr
}

func (g *fakeGateway) GetStatus(ctx context.Context, orderCode int64) (TxStatus, error) {
	return TxPending, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, orderCode int64, reason string) error {
	g.cancelled = append(g.cancelled, orderCode)
	return g.cancelErr
}

func (g *fakeGateway) Refund(ctx context.Context, orderCode int64, amount *int64, reason string) (string, error) {
	g.refunded = append(g.refunded, orderCode)
	return g.refundID, g.refundErr
}

type fakePayNotifier struct{ received int }

func (n *fakePayNotifier) PaymentReceived(ctx context.Context, orderID uuid.UUID, amount int64) {
	n.received++
}

// ── fixture ───────────────────────────────────────────────────────────────────

type payFixture struct {
	svc      Service
	repo     *fakePayRepo
	orders   *fakeOrders
	gateway  *fakeGateway
	signer   *Signer
	notifier *fakePayNotifier
}

func newPayFixture() *payFixture {
	f := &payFixture{
		repo:     &fakePayRepo{},
		orders:   &fakeOrders{orders: map[uuid.UUID]*order.Order{}},
		gateway:  &fakeGateway{link: &LinkResult{CheckoutURL: "https://pay.example/l", QRCode: "qr"}},
		signer:   NewSigner("checksum"),
		notifier: &fakePayNotifier{},
	}
	f.svc = NewService(f.repo, f.orders, f.gateway, f.signer, f.notifier)
	return f
}

func (f *payFixture) addOrder(method order.PaymentMethod, payStatus order.PaymentStatus) *order.Order {
	o := &order.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		OrderNumber:   "ORD-20250101-0001",
		Total:         1_100_000,
		PaymentMethod: method,
		PaymentStatus: payStatus,
	}
	f.orders.orders[o.ID] = o
	return o
}

func (f *payFixture) addTransaction(orderID uuid.UUID, code int64, status TxStatus) *Transaction {
	t := &Transaction{
		ID:                uuid.New(),
		OrderID:           orderID,
		ProviderOrderCode: code,
		Amount:            1_100_000,
		Status:            status,
	}
	f.repo.transactions = append(f.repo.transactions, t)
	return t
}

func (f *payFixture) signedWebhook(data WebhookData) WebhookPayload {
	return WebhookPayload{
		Code:      "00",
		Data:      data,
		Signature: f.signer.Sign(webhookFields(data)),
	}
}

// ── link creation ─────────────────────────────────────────────────────────────

func TestCreateLink(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)

	tx, err := f.svc.CreateLink(context.Background(), identity.User{ID: o.UserID}, o.ID)
	require.NoError(t, err)

	assert.Equal(t, TxPending, tx.Status)
	assert.Equal(t, int64(1_100_000), tx.Amount)
	assert.Equal(t, "https://pay.example/l", tx.CheckoutURL)
	assert.NotZero(t, tx.ProviderOrderCode)
}

func TestCreateLink_ProviderFailureMarksTransactionFailed(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	f.gateway.link = nil
	f.gateway.linkErr = apperr.External(errors.New("timeout"), "payment provider unreachable")

	_, err := f.svc.CreateLink(context.Background(), identity.User{ID: o.UserID}, o.ID)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))

	// The pending row was committed before the provider call and marked
	// failed afterwards.
	require.Len(t, f.repo.transactions, 1)
	assert.Equal(t, TxFailed, f.repo.transactions[0].Status)
}

func TestCreateLink_ReusesOpenLink(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	existing := f.addTransaction(o.ID, 42, TxPending)
	existing.CheckoutURL = "https://pay.example/existing"

	tx, err := f.svc.CreateLink(context.Background(), identity.User{ID: o.UserID}, o.ID)
	require.NoError(t, err)

	assert.Equal(t, existing.ID, tx.ID)
	assert.Len(t, f.repo.transactions, 1)
}

func TestCreateLink_RepositoryErrorPropagates(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	f.repo.latestOpenErr = errors.New("connection reset")

	_, err := f.svc.CreateLink(context.Background(), identity.User{ID: o.UserID}, o.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	// No second pending transaction behind a failed lookup.
	assert.Empty(t, f.repo.transactions)
}

func TestCreateLink_Rejections(t *testing.T) {
	f := newPayFixture()

	cod := f.addOrder(order.MethodCOD, order.PaymentPending)
	_, err := f.svc.CreateLink(context.Background(), identity.User{ID: cod.UserID}, cod.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	paid := f.addOrder(order.MethodOnline, order.PaymentPaid)
	_, err = f.svc.CreateLink(context.Background(), identity.User{ID: paid.UserID}, paid.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	other := f.addOrder(order.MethodOnline, order.PaymentPending)
	_, err = f.svc.CreateLink(context.Background(), identity.User{ID: uuid.New(), Role: "customer"}, other.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
}

// ── webhook reconciliation ────────────────────────────────────────────────────

func TestHandleWebhook_PaymentCompleted(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	tx := f.addTransaction(o.ID, 42, TxPending)

	err := f.svc.HandleWebhook(context.Background(), f.signedWebhook(WebhookData{
		OrderCode: 42, Amount: 1_100_000, Status: "PAID",
	}))
	require.NoError(t, err)

	assert.Equal(t, TxCompleted, tx.Status)
	assert.Equal(t, []uuid.UUID{o.ID}, f.orders.paid)
	assert.Equal(t, 1, f.notifier.received)
}

func TestHandleWebhook_BadSignatureNeverApplied(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	tx := f.addTransaction(o.ID, 42, TxPending)

	payload := f.signedWebhook(WebhookData{OrderCode: 42, Amount: 1_100_000, Status: "PAID"})
	payload.Signature = "forged"

	err := f.svc.HandleWebhook(context.Background(), payload)
	assert.Equal(t, apperr.KindSignature, apperr.KindOf(err))
	assert.Equal(t, TxPending, tx.Status)
	assert.Empty(t, f.orders.paid)
}

func TestHandleWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	f.addTransaction(o.ID, 42, TxPending)

	payload := f.signedWebhook(WebhookData{OrderCode: 42, Amount: 1_100_000, Status: "PAID"})
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload))

	// Applied exactly once.
	assert.Len(t, f.orders.paid, 1)
	assert.Equal(t, 1, f.notifier.received)
}

func TestHandleWebhook_StaleReportIgnored(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPaid)
	tx := f.addTransaction(o.ID, 42, TxCompleted)

	err := f.svc.HandleWebhook(context.Background(), f.signedWebhook(WebhookData{
		OrderCode: 42, Amount: 1_100_000, Status: "PROCESSING",
	}))
	require.NoError(t, err)
	assert.Equal(t, TxCompleted, tx.Status) // no regression
	assert.Empty(t, f.orders.paid)
}

func TestHandleWebhook_UnknownTransaction(t *testing.T) {
	f := newPayFixture()

	err := f.svc.HandleWebhook(context.Background(), f.signedWebhook(WebhookData{
		OrderCode: 999, Status: "PAID",
	}))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// ── cancellation-refund path ──────────────────────────────────────────────────

func TestOnOrderCancelled_RefundsCapturedPayment(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPaid)
	tx := f.addTransaction(o.ID, 42, TxCompleted)
	f.gateway.refundID = "rf-1"

	outcome := f.svc.OnOrderCancelled(context.Background(), o.ID, true)

	assert.True(t, outcome.Attempted)
	assert.True(t, outcome.Initiated)
	assert.Empty(t, outcome.Warning)
	assert.Equal(t, []int64{42}, f.gateway.refunded)
	assert.Equal(t, TxRefunded, tx.Status)

	require.Len(t, f.repo.refunds, 1)
	assert.Equal(t, RefundProcessing, f.repo.refunds[0].Status)
	assert.Equal(t, "rf-1", f.repo.refunds[0].ProviderRefundID)
	assert.Equal(t, int64(1_100_000), f.repo.refunds[0].Amount)
}

func TestOnOrderCancelled_RefundFailureIsWarning(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPaid)
	tx := f.addTransaction(o.ID, 42, TxCompleted)
	f.gateway.refundErr = apperr.External(errors.New("timeout"), "payment provider unreachable")

	outcome := f.svc.OnOrderCancelled(context.Background(), o.ID, true)

	assert.True(t, outcome.Attempted)
	assert.False(t, outcome.Initiated)
	assert.Contains(t, outcome.Warning, "refund call failed")
	assert.Equal(t, TxCompleted, tx.Status) // still refundable later

	require.Len(t, f.repo.refunds, 1)
	assert.Equal(t, RefundFailed, f.repo.refunds[0].Status)
}

func TestOnOrderCancelled_UnpaidCancelsOpenLink(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodOnline, order.PaymentPending)
	tx := f.addTransaction(o.ID, 42, TxPending)

	outcome := f.svc.OnOrderCancelled(context.Background(), o.ID, false)

	assert.False(t, outcome.Attempted)
	assert.Empty(t, outcome.Warning)
	assert.Equal(t, []int64{42}, f.gateway.cancelled)
	assert.Equal(t, TxCancelled, tx.Status)
	assert.Empty(t, f.repo.refunds)
}

func TestOnOrderCancelled_NothingToSettle(t *testing.T) {
	f := newPayFixture()
	o := f.addOrder(order.MethodCOD, order.PaymentPending)

	outcome := f.svc.OnOrderCancelled(context.Background(), o.ID, false)

	assert.Equal(t, order.RefundOutcome{}, outcome)
	assert.Empty(t, f.gateway.cancelled)
	assert.Empty(t, f.gateway.refunded)
}
