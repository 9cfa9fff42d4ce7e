package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/cart"
	"github.com/minhvo/storefront-backend/internal/modules/catalog"
	"github.com/minhvo/storefront-backend/internal/modules/coupon"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
)

// returnWindow is how long after delivery a return may be requested.
const returnWindow = 7 * 24 * time.Hour

// refundCallBudget bounds the provider call during cancellation so a slow
// provider cannot block the order from reaching cancelled.
const refundCallBudget = 15 * time.Second

// RefundOutcome reports what happened provider-side while cancelling.
type RefundOutcome struct {
	Attempted bool
	Initiated bool
	Warning   string
}

// PaymentCoordinator settles provider-side state for a cancelling order:
// refund a captured payment, or cancel any open payment link so a stale QR
// cannot be paid after the order is gone.
type PaymentCoordinator interface {
	OnOrderCancelled(ctx context.Context, orderID uuid.UUID, paid bool) RefundOutcome
}

// Notifier is the best-effort event path. Implementations must swallow and
// log their own failures; callers never check an error here.
type Notifier interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderCancelled(ctx context.Context, o *Order)
}

// Service is the order lifecycle and checkout orchestration.
type Service interface {
	// Checkout snapshots the user's cart into an order and clears the cart.
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*Order, error)

	// Create places an order from an explicit item list.
	Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*Order, error)

	// Get loads an order; customers only see their own.
	Get(ctx context.Context, user identity.User, id uuid.UUID) (*Order, error)

	// ListMine pages the acting user's orders.
	ListMine(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Order, int, error)

	// ListAll pages all orders for administrators.
	ListAll(ctx context.Context, f ListFilter) ([]*Order, int, error)

	// UpdateStatus advances fulfilment along the allowed transitions.
	UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) error

	// Cancel cancels a pending/processing order, restoring stock and coupon
	// usage and settling any payment. The order always ends up cancelled
	// even when the refund call fails; the failure is reported as a warning.
	Cancel(ctx context.Context, user identity.User, id uuid.UUID, reason string) (*CancelResult, error)

	// RequestReturn opens a return for a delivered order within the window.
	RequestReturn(ctx context.Context, userID, id uuid.UUID, req ReturnRequestInput) (uuid.UUID, error)

	// Stats aggregates order counts and revenue over a date range.
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
}

type service struct {
	repo     Repository
	catalog  catalog.Reader
	carts    cart.Repository
	coupons  coupon.Ledger
	payments PaymentCoordinator
	notifier Notifier
	pricing  PricingConfig
	now      func() time.Time
}

// NewService creates the order service.
func NewService(repo Repository, reader catalog.Reader, carts cart.Repository,
	coupons coupon.Ledger, payments PaymentCoordinator, notifier Notifier, pricing PricingConfig) Service {
	return &service{
		repo:     repo,
		catalog:  reader,
		carts:    carts,
		coupons:  coupons,
		payments: payments,
		notifier: notifier,
		pricing:  pricing,
		now:      time.Now,
	}
}

// validTransitions is the allowed fulfilment adjacency set. cancelled is
// reached through Cancel, return_requested through RequestReturn.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusReturnRequested},
}

func transitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*Order, error) {
	items, err := s.carts.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	inputs := make([]ItemInput, 0, len(items))
	for _, it := range items {
		inputs = append(inputs, ItemInput{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			Color:     it.Color,
			Size:      it.Size,
		})
	}

	return s.place(ctx, userID, CreateRequest{
		Items:           inputs,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
	}, &userID)
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*Order, error) {
	return s.place(ctx, userID, req, nil)
}

func (s *service) place(ctx context.Context, userID uuid.UUID, req CreateRequest, clearCartFor *uuid.UUID) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if len(req.ShippingAddress) == 0 {
		return nil, apperr.Validation("shipping_address is required")
	}
	method := PaymentMethod(req.PaymentMethod)
	if method != MethodCOD && method != MethodOnline {
		return nil, apperr.Validation("payment_method must be cod or online")
	}

	orderID := uuid.New()
	items, lines, err := s.resolveItems(ctx, orderID, req.Items)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPrice * int64(l.Quantity)
	}

	var discount *coupon.Discount
	if req.CouponCode != "" {
		discount, err = s.coupons.Validate(ctx, req.CouponCode, subtotal, userID)
		if err != nil {
			return nil, err
		}
	}

	var discountAmount int64
	if discount != nil {
		discountAmount = discount.Amount
	}
	quote := ComputeQuote(lines, discountAmount, s.pricing)

	billing := req.BillingAddress
	if len(billing) == 0 {
		billing = req.ShippingAddress
	}

	o := &Order{
		ID:              orderID,
		UserID:          userID,
		Status:          StatusPending,
		Subtotal:        quote.Subtotal,
		Tax:             quote.Tax,
		Shipping:        quote.Shipping,
		Discount:        quote.Discount,
		Total:           quote.Total,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Notes:           req.Notes,
		Items:           items,
	}

	opts := CreateOptions{Coupon: discount, ClearCartUserID: clearCartFor}
	if err := s.repo.Create(ctx, o, opts); err != nil {
		return nil, err
	}

	s.notifier.OrderCreated(ctx, o)
	return o, nil
}

// resolveItems snapshots each requested product into an order item, checking
// active flag and advisory stock. The binding stock check is the reservation
// inside the create transaction.
func (s *service) resolveItems(ctx context.Context, orderID uuid.UUID, inputs []ItemInput) ([]*Item, []PricedLine, error) {
	items := make([]*Item, 0, len(inputs))
	lines := make([]PricedLine, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, nil, apperr.Validation("quantity must be greater than zero for product %s", in.ProductID)
		}
		productID, err := uuid.Parse(in.ProductID)
		if err != nil {
			return nil, nil, apperr.Validation("invalid product_id %q", in.ProductID)
		}

		p, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, nil, err
		}
		if !p.IsActive {
			return nil, nil, apperr.Validation("product %s is not available", p.Name)
		}
		if p.Stock < in.Quantity {
			return nil, nil, apperr.Conflict("product %s insufficient stock", p.Name)
		}

		price := p.EffectivePrice()
		items = append(items, &Item{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   productID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			TotalPrice:  price * int64(in.Quantity),
			Color:       in.Color,
			Size:        in.Size,
		})
		lines = append(lines, PricedLine{UnitPrice: price, Quantity: in.Quantity})
	}
	return items, lines, nil
}

func (s *service) Get(ctx context.Context, user identity.User, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID && !user.IsAdmin() {
		return nil, apperr.Permission("order %s does not belong to this account", id)
	}
	return o, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Order, int, error) {
	f.UserID = &userID
	return s.repo.List(ctx, f)
}

func (s *service) ListAll(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	return s.repo.List(ctx, f)
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) error {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	newStatus := Status(req.Status)
	if !transitionAllowed(o.Status, newStatus) {
		return apperr.Conflict("cannot transition order from %s to %s", o.Status, newStatus)
	}
	return s.repo.UpdateStatus(ctx, id, newStatus, req.Note)
}

func (s *service) Cancel(ctx context.Context, user identity.User, id uuid.UUID, reason string) (*CancelResult, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != user.ID && !user.IsAdmin() {
		return nil, apperr.Permission("order %s does not belong to this account", id)
	}
	if o.Status != StatusPending && o.Status != StatusProcessing {
		return nil, apperr.Conflict("order in status %s cannot be cancelled", o.Status)
	}

	// Settle provider-side state before committing the cancellation: the
	// refund result decides the final payment status. The call is bounded
	// so a hung provider cannot stall the cancellation.
	paid := o.PaymentStatus == PaymentPaid
	callCtx, cancel := context.WithTimeout(ctx, refundCallBudget)
	outcome := s.payments.OnOrderCancelled(callCtx, o.ID, paid)
	cancel()

	paymentStatus := o.PaymentStatus
	switch {
	case !paid:
		paymentStatus = PaymentCancelled
	case outcome.Initiated:
		paymentStatus = PaymentRefunded
	}

	if err := s.repo.Cancel(ctx, o, reason, paymentStatus); err != nil {
		return nil, err
	}

	o.Status = StatusCancelled
	o.PaymentStatus = paymentStatus
	s.notifier.OrderCancelled(ctx, o)

	return &CancelResult{
		OrderID:         o.ID,
		Status:          StatusCancelled,
		PaymentStatus:   paymentStatus,
		RefundAttempted: outcome.Attempted,
		RefundInitiated: outcome.Initiated,
		Warning:         outcome.Warning,
	}, nil
}

func (s *service) RequestReturn(ctx context.Context, userID, id uuid.UUID, req ReturnRequestInput) (uuid.UUID, error) {
	if req.Reason == "" {
		return uuid.Nil, apperr.Validation("a return reason is required")
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if o.UserID != userID {
		return uuid.Nil, apperr.Permission("order %s does not belong to this account", id)
	}
	if o.Status != StatusDelivered {
		return uuid.Nil, apperr.Conflict("only delivered orders can be returned")
	}
	if o.DeliveredAt == nil || s.now().Sub(*o.DeliveredAt) > returnWindow {
		return uuid.Nil, apperr.Conflict("return window of %d days has passed", int(returnWindow.Hours()/24))
	}

	items := req.Items
	if len(items) == 0 {
		// Returning everything.
		for _, it := range o.Items {
			items = append(items, ReturnItem{OrderItemID: it.ID, Quantity: it.Quantity})
		}
	}

	ret := &ReturnRequest{
		ID:      uuid.New(),
		OrderID: o.ID,
		UserID:  userID,
		Reason:  req.Reason,
		Items:   items,
		Status:  "requested",
	}
	if err := s.repo.CreateReturn(ctx, ret); err != nil {
		return uuid.Nil, err
	}
	return ret.ID, nil
}

func (s *service) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	return s.repo.Stats(ctx, from, to)
}
