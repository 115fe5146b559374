package bus

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	EventUpdateReceived  EventType = "update_received"
	EventUpdateHandled   EventType = "update_handled"
	EventUpdateUnhandled EventType = "update_unhandled"
	EventUpdateFailed    EventType = "update_failed"
)

// Event reports the progress of one routed update.
type Event struct {
	Type      EventType     `json:"type"`
	At        time.Time     `json:"at"`
	Channel   string        `json:"channel,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	ChatID    int64         `json:"chat_id,omitempty"`
	UpdateID  int           `json:"update_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Route     string        `json:"route,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// PublishEvent delivers event to every subscriber without blocking; full
// subscriber buffers drop the event.
func (b *UpdateBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	default:
	}

	b.mu.RLock()
	subs := make([]chan Event, 0, len(b.eventSubscribers))
	for _, ch := range b.eventSubscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Drop instead of blocking the publisher on slow subscribers.
		}
	}

	return true
}

// SubscribeEvents registers a subscriber until ctx ends, the bus closes or
// the returned function is called.
func (b *UpdateBus) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := b.nextEventSubscriberID
	b.nextEventSubscriberID++
	b.eventSubscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if eventCh, ok := b.eventSubscribers[id]; ok {
				delete(b.eventSubscribers, id)
				close(eventCh)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-b.done:
			unsubscribe()
		}
	}()

	return ch, unsubscribe
}
