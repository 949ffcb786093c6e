package outbox

import "context"

// Event is any domain event carrying a stable name identifier.
type Event interface {
	EventName() string
}

// Handler processes one published event.
type Handler func(ctx context.Context, e Event) error

// Publisher delivers events to interested subscribers. Checkout and
// order-status flows publish only after their state is durable.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers by event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
