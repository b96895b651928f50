package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestBusSurvivesFailingHandlers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var seen []string
	bus.Subscribe(HandlerFunc(func(context.Context, ActionCompletedEvent) error { panic("boom") }))
	bus.Subscribe(HandlerFunc(func(context.Context, ActionCompletedEvent) error { return errors.New("nope") }))
	bus.Subscribe(HandlerFunc(func(_ context.Context, e ActionCompletedEvent) error {
		seen = append(seen, e.ID)
		return nil
	}))

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), ActionCompletedEvent{ID: "1"}, ActionCompletedEvent{ID: "2"})
	})
	assert.Equal(t, []string{"1", "2"}, seen)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var first, second int
	stop := bus.Subscribe(HandlerFunc(func(context.Context, ActionCompletedEvent) error { first++; return nil }))
	bus.Subscribe(HandlerFunc(func(context.Context, ActionCompletedEvent) error { second++; return nil }))

	bus.Publish(context.Background(), ActionCompletedEvent{ID: "1"})
	stop()
	stop()
	bus.Publish(context.Background(), ActionCompletedEvent{ID: "2"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
