package order

import "time"

// OrderPlacedEvent is emitted after a checkout commits: the order is
// durable, stock is decremented, and the cart is cleared. Handlers run
// strictly after commit and cannot affect its outcome.
type OrderPlacedEvent struct {
	OrderID    string
	OwnerID    string
	Total      string
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		Total:      o.Total.StringFixed(2),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted on every successful status change,
// cancellation included.
type OrderStatusChangedEvent struct {
	OrderID    string
	OwnerID    string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
