package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/ardenlake/bookshop/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ ID string }

func (testEvent) EventName() string { return "test.event" }

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		evt := e.(testEvent)
		mu.Lock()
		got = append(got, evt.ID)
		mu.Unlock()
		if evt.ID == "e2" {
			close(done)
		}
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{ID: "e1"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{ID: "e2"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events were not delivered in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"e1", "e2"}, got)
}

func TestBus_PanickingHandlerDoesNotKillDispatch(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	done := make(chan struct{})
	bus.Subscribe("test.event", func(context.Context, domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		if e.(testEvent).ID == "after" {
			close(done)
		}
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{ID: "after"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panic in one handler starved the others")
	}
}

func TestBus_NilEventIsIgnored(t *testing.T) {
	bus := NewBus(nil)
	assert.NoError(t, bus.Publish(context.Background(), nil))
}

func TestBus_PublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	// A publisher racing with shutdown gets an error, never a panic.
	err := bus.Publish(context.Background(), testEvent{ID: "late"})
	assert.ErrorIs(t, err, ErrStopped)
}
