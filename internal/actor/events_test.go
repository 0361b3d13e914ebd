package actor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBusPublishFansOutToSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()

	var mu sync.Mutex
	var gotA, gotB []Event

	idA := bus.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		gotA = append(gotA, ev)
	})
	idB := bus.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		gotB = append(gotB, ev)
	})

	ev := Spawned{Path: MustParsePath("/a")}
	bus.Publish(ev)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Event{ev}, gotA)
	require.Equal(t, []Event{ev}, gotB)

	bus.Unsubscribe(idA)
	bus.Unsubscribe(idB)
}

func TestEventBusUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()

	var count int
	var mu sync.Mutex

	id := bus.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	bus.Publish(Spawned{Path: MustParsePath("/a")})
	bus.Unsubscribe(id)
	bus.Publish(Spawned{Path: MustParsePath("/a")})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

func TestEventBusConsumeOneBlocksUntilPublish(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()

	want := Stopped{Path: MustParsePath("/a")}

	done := make(chan Event, 1)
	go func() {
		done <- bus.ConsumeOne()
	}()

	bus.Publish(want)

	require.Equal(t, want, <-done)
}

func TestEventBusSubscriberPanicDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()

	var called bool
	bus.Subscribe(func(ev Event) {
		panic("boom")
	})
	bus.Subscribe(func(ev Event) {
		called = true
	})

	require.NotPanics(t, func() {
		bus.Publish(Spawned{Path: MustParsePath("/a")})
	})
	require.True(t, called)
}
