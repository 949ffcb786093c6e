package notify

import (
	"context"

	domorder "github.com/ardenlake/bookshop/internal/domain/order"
	domoutbox "github.com/ardenlake/bookshop/internal/domain/outbox"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/observability/logctx"
)

// Notifier is the boundary to the external notification collaborator
// (email, push). Its failures never reach the checkout commit path:
// events arrive here only after the order is durable.
type Notifier interface {
	OrderPlaced(ctx context.Context, ownerID, orderID, total string) error
	OrderStatusChanged(ctx context.Context, ownerID, orderID string, from, to domorder.Status) error
}

// Worker subscribes order events to the notifier.
type Worker struct {
	subscriber domoutbox.Subscriber
	notifier   Notifier
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, notifier Notifier, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		notifier:   notifier,
		log:        tel.Logger().With(observability.F("component", "notify_worker")),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handleOrderPlaced)
	w.subscriber.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), w.handleStatusChanged)
}

func (w *Worker) handleOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}
	return w.notifier.OrderPlaced(ctx, evt.OwnerID, evt.OrderID, evt.Total)
}

func (w *Worker) handleStatusChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderStatusChangedEvent)
	if !ok {
		return nil
	}
	return w.notifier.OrderStatusChanged(ctx, evt.OwnerID, evt.OrderID, evt.From, evt.To)
}

// LogNotifier is the default stand-in notifier: it records the
// notification instead of delivering it.
type LogNotifier struct {
	log observability.Logger
}

func NewLogNotifier(tel observability.Observability) *LogNotifier {
	if tel == nil {
		tel = observability.Nop()
	}
	return &LogNotifier{log: tel.Logger().With(observability.F("component", "log_notifier"))}
}

func (n *LogNotifier) OrderPlaced(ctx context.Context, ownerID, orderID, total string) error {
	logctx.FromOr(ctx, n.log).Info("notify_order_placed",
		observability.F("owner_id", ownerID),
		observability.F("order_id", orderID),
		observability.F("total", total),
	)
	return nil
}

func (n *LogNotifier) OrderStatusChanged(ctx context.Context, ownerID, orderID string, from, to domorder.Status) error {
	logctx.FromOr(ctx, n.log).Info("notify_order_status_changed",
		observability.F("owner_id", ownerID),
		observability.F("order_id", orderID),
		observability.F("from", string(from)),
		observability.F("to", string(to)),
	)
	return nil
}
