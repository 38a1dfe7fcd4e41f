package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusOrder(t *testing.T) {
	bus := NewEventBus()

	var got []string
	bus.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Type.String()) })
	sub := bus.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Type.String()) })
	bus.Subscribe(func(ev Event) { got = append(got, "c:"+ev.Type.String()) })

	bus.Publish(Event{Type: EventBeforeLoad})
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(Event{Type: EventStopped})

	assert.Equal(t, []string{
		"a:before_load", "b:before_load", "c:before_load",
		"a:stopped", "c:stopped",
	}, got)
}

func TestEventBusSubscribeDuringPublish(t *testing.T) {
	bus := NewEventBus()

	var late int
	bus.Subscribe(func(Event) {
		bus.Subscribe(func(Event) { late++ })
	})

	bus.Publish(Event{Type: EventLoadFailed})
	assert.Equal(t, 0, late, "subscribers added during publish miss the event")

	bus.Publish(Event{Type: EventLoadFailed})
	assert.Equal(t, 1, late)
}

func TestNilSubscription(t *testing.T) {
	var sub *Subscription
	sub.Unsubscribe()
}
