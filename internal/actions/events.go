package actions

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActionCompletedEvent is published after every action run, successful or not.
type ActionCompletedEvent struct {
	ID         string    `json:"id"`
	ActionID   string    `json:"action_id"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	ActorID    *uint     `json:"actor_id,omitempty"`
	ActorEmail string    `json:"actor_email,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Handler interface {
	HandleActionCompleted(ctx context.Context, event ActionCompletedEvent) error
}

type HandlerFunc func(ctx context.Context, event ActionCompletedEvent) error

func (f HandlerFunc) HandleActionCompleted(ctx context.Context, event ActionCompletedEvent) error {
	return f(ctx, event)
}

// Bus delivers completion events synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[uint64]Handler
	order    []uint64
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{handlers: map[uint64]Handler{}, logger: logger.Named("events")}
}

// Subscribe registers h and returns a function that removes it again.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.handlers[id] = h
	b.order = append(b.order, id)
	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[id]; !ok {
		return
	}
	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish hands each event to every handler. Handler errors and panics are logged and do not
// reach the publisher or the other handlers.
func (b *Bus) Publish(ctx context.Context, events ...ActionCompletedEvent) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, event := range events {
		for _, h := range handlers {
			if err := b.dispatch(ctx, h, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("action", event.ActionID),
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event ActionCompletedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("action", event.ActionID),
				zap.Any("panic", r),
			)
		}
	}()
	return h.HandleActionCompleted(ctx, event)
}
