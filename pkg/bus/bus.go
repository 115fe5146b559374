package bus

import (
	"context"
	"sync"
)

const defaultBufferSize = 100

// UpdateBus queues deliveries from channel receive loops to routing workers
// and fans routing events out to subscribers.
type UpdateBus struct {
	updates chan Delivery

	eventSubscribers      map[uint64]chan Event
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

// NewUpdateBus creates a bus whose update queue holds buffer deliveries.
// Publishing blocks while the queue is full.
func NewUpdateBus(buffer int) *UpdateBus {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	return &UpdateBus{
		updates:          make(chan Delivery, buffer),
		eventSubscribers: make(map[uint64]chan Event),
		done:             make(chan struct{}),
	}
}

// PublishUpdate enqueues a delivery. It reports false when ctx is done or the
// bus closed first.
func (b *UpdateBus) PublishUpdate(ctx context.Context, d Delivery) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	case b.updates <- d:
		return true
	}
}

// ConsumeUpdate waits for the next delivery.
func (b *UpdateBus) ConsumeUpdate(ctx context.Context) (Delivery, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return Delivery{}, false
	case <-b.done:
		return Delivery{}, false
	case d := <-b.updates:
		return d, true
	}
}

// Pending returns the number of queued deliveries.
func (b *UpdateBus) Pending() int {
	return len(b.updates)
}

// Close stops the bus. Queued deliveries are dropped and event subscriptions
// are closed.
func (b *UpdateBus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		for id, ch := range b.eventSubscribers {
			close(ch)
			delete(b.eventSubscribers, id)
		}
		b.mu.Unlock()
	})
}
