// Package notify is the explicit best-effort side-effect path: lifecycle
// events published to Kafka for downstream consumers (emails, analytics).
// Publish failures are logged and swallowed; nothing here may ever affect
// the transactional core.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/minhvo/storefront-backend/internal/modules/order"
)

// Topic carries every storefront lifecycle event; the event name is in the
// payload and the order id is the partition key, keeping per-order ordering.
const Topic = "storefront.order-events"

// publishBudget bounds a single publish attempt.
const publishBudget = 5 * time.Second

// Publisher sends one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher backed by a shared Kafka writer.
func NewKafkaPublisher(brokers []string) Publisher {
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

func (p *kafkaPublisher) Close() error { return p.writer.Close() }

// event is the wire shape of every published message.
type event struct {
	Event      string    `json:"event"`
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id,omitempty"`
	Total      int64     `json:"total,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier publishes order and payment lifecycle events best-effort. It
// satisfies both order.Notifier and payment.Notifier.
type Notifier struct {
	publisher Publisher
	now       func() time.Time
}

func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher, now: time.Now}
}

func (n *Notifier) OrderCreated(ctx context.Context, o *order.Order) {
	n.emit(ctx, event{Event: "order.created", OrderID: o.ID, UserID: o.UserID, Total: o.Total})
}

func (n *Notifier) OrderCancelled(ctx context.Context, o *order.Order) {
	n.emit(ctx, event{Event: "order.cancelled", OrderID: o.ID, UserID: o.UserID, Total: o.Total})
}

func (n *Notifier) PaymentReceived(ctx context.Context, orderID uuid.UUID, amount int64) {
	n.emit(ctx, event{Event: "payment.received", OrderID: orderID, Total: amount})
}

// emit publishes with a bounded timeout, detached from the caller's context
// cancellation so an aborted request cannot cut off an already-decided event.
func (n *Notifier) emit(ctx context.Context, e event) {
	e.OccurredAt = n.now()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishBudget)
	defer cancel()

	if err := n.publisher.Publish(pubCtx, e.OrderID.String(), e); err != nil {
		log.Printf("notify: publishing %s for order %s: %v", e.Event, e.OrderID, err)
	}
}

// NopNotifier satisfies the notifier interfaces when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) OrderCreated(ctx context.Context, o *order.Order)   {}
func (NopNotifier) OrderCancelled(ctx context.Context, o *order.Order) {}
func (NopNotifier) PaymentReceived(ctx context.Context, orderID uuid.UUID, amount int64) {
}
