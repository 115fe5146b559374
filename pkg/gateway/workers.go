package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/middleware"

	"golang.org/x/sync/errgroup"
)

// runWorkers consumes the bus until ctx is done, routing at most
// max_concurrency updates at once. With serialize_per_chat, updates of one
// chat are routed one after another in arrival order. It returns after
// in-flight updates finished.
func (s *Service) runWorkers(ctx context.Context) error {
	var g errgroup.Group
	if limit := s.cfg.Router.MaxConcurrency; limit > 0 {
		g.SetLimit(limit)
	}

	for {
		d, ok := s.bus.ConsumeUpdate(ctx)
		if !ok {
			break
		}

		chatID, hasChat := d.Update.ChatID()
		if !s.cfg.Router.SerializePerChat || !hasChat {
			g.Go(func() error {
				s.routeDelivery(ctx, d)
				return nil
			})
			continue
		}

		if s.lanes.enqueue(chatID, d) {
			continue
		}
		g.Go(func() error {
			for next, ok := d, true; ok && ctx.Err() == nil; next, ok = s.lanes.next(chatID) {
				s.routeDelivery(ctx, next)
			}
			return nil
		})
	}

	return g.Wait()
}

// chatLanes queues updates of chats that already have one being routed.
type chatLanes struct {
	mu      sync.Mutex
	waiting map[int64][]bus.Delivery
}

// enqueue reports true when chatID is busy and d was queued behind it.
// Otherwise it marks the chat busy and the caller must route d itself.
func (l *chatLanes) enqueue(chatID int64, d bus.Delivery) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.waiting == nil {
		l.waiting = make(map[int64][]bus.Delivery)
	}
	if queue, busy := l.waiting[chatID]; busy {
		l.waiting[chatID] = append(queue, d)
		return true
	}

	l.waiting[chatID] = nil
	return false
}

// next pops the oldest queued update of chatID, releasing the chat when
// nothing is left.
func (l *chatLanes) next(chatID int64) (bus.Delivery, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	queue := l.waiting[chatID]
	if len(queue) == 0 {
		delete(l.waiting, chatID)
		return bus.Delivery{}, false
	}

	d := queue[0]
	queue[0] = bus.Delivery{}
	l.waiting[chatID] = queue[1:]
	return d, true
}

func (l *chatLanes) busy() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiting)
}

// routeDelivery routes one update under the per-update timeout, publishes the
// outcome and hands failures to the error handler.
func (s *Service) routeDelivery(ctx context.Context, d bus.Delivery) {
	defer s.finished()

	routeCtx := ctx
	if timeout := s.updateTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		routeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	update := d.Update
	c := dispatch.NewContext(routeCtx, &update, d.Sender, s.store)

	start := time.Now()
	handled, err := s.route(c)

	event := bus.Event{
		Channel:   d.Channel,
		Kind:      update.KindName(),
		UpdateID:  update.ID,
		RequestID: c.RequestID(),
		Duration:  time.Since(start),
	}
	if chatID, ok := update.ChatID(); ok {
		event.ChatID = chatID
	}
	if m, ok := c.Matched(); ok {
		event.Route = m.Route
	}

	switch {
	case err != nil:
		s.stats.failed.Add(1)
		event.Type = bus.EventUpdateFailed
		event.Error = err.Error()
		s.handleError(routeCtx, d, err)
	case handled:
		s.stats.handled.Add(1)
		event.Type = bus.EventUpdateHandled
	default:
		s.stats.unhandled.Add(1)
		event.Type = bus.EventUpdateUnhandled
	}

	s.bus.PublishEvent(ctx, event)
}

// route shields the worker from panics that escape the pipeline.
func (s *Service) route(c *dispatch.Context) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled = false
			err = fmt.Errorf("%w: %v", middleware.ErrPanic, r)
		}
	}()

	return s.router.Route(c)
}

func (s *Service) handleError(ctx context.Context, d bus.Delivery, err error) {
	if s.onError == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Error handler panicked", "channel", d.Channel, "update_id", d.Update.ID, "panic", r)
		}
	}()

	s.onError(ctx, d, err)
}

func (s *Service) updateTimeout() time.Duration {
	return time.Duration(s.cfg.Router.UpdateTimeoutSeconds) * time.Second
}

// finished counts a routed update and wakes the idle watcher.
func (s *Service) finished() {
	s.stats.done.Add(1)
	select {
	case s.progress <- struct{}{}:
	default:
	}
}
