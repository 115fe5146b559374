package bus

import (
	"context"
	"testing"
	"time"

	"chatrouter/pkg/platform"
)

func delivery(chatID int64, text string) Delivery {
	return Delivery{
		Channel: "console",
		Update: platform.Update{
			ID:      int(chatID),
			Kind:    platform.KindMessage,
			Message: &platform.Message{Chat: platform.Chat{ID: chatID}, Text: text},
		},
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	b := NewUpdateBus(0)
	t.Cleanup(b.Close)

	in := delivery(7, "/start")
	if ok := b.PublishUpdate(context.Background(), in); !ok {
		t.Fatal("expected update publish to succeed")
	}
	if got := b.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	out, ok := b.ConsumeUpdate(context.Background())
	if !ok {
		t.Fatal("expected update consume to succeed")
	}
	if out.Update.Message.Text != "/start" {
		t.Fatalf("text = %q, want %q", out.Update.Message.Text, "/start")
	}
	if out.Channel != "console" {
		t.Fatalf("channel = %q, want %q", out.Channel, "console")
	}
}

func TestUpdatesKeepPublishOrder(t *testing.T) {
	b := NewUpdateBus(3)
	t.Cleanup(b.Close)

	for i := range int64(3) {
		if !b.PublishUpdate(context.Background(), delivery(i, "x")) {
			t.Fatalf("publish %d failed", i)
		}
	}
	for i := range int64(3) {
		d, ok := b.ConsumeUpdate(context.Background())
		if !ok {
			t.Fatalf("consume %d failed", i)
		}
		if got, _ := d.Update.ChatID(); got != i {
			t.Fatalf("chat = %d, want %d", got, i)
		}
	}
}

func TestPublishBlocksWhenFull(t *testing.T) {
	b := NewUpdateBus(1)
	t.Cleanup(b.Close)

	if !b.PublishUpdate(context.Background(), delivery(1, "a")) {
		t.Fatal("expected first publish to succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if b.PublishUpdate(ctx, delivery(2, "b")) {
		t.Fatal("expected publish on a full queue to wait until ctx expires")
	}
}

func TestCloseStopsBusOperations(t *testing.T) {
	b := NewUpdateBus(0)
	b.Close()

	if ok := b.PublishUpdate(context.Background(), delivery(1, "hello")); ok {
		t.Fatal("expected publish to fail after close")
	}
	if _, ok := b.ConsumeUpdate(context.Background()); ok {
		t.Fatal("expected consume to stop after close")
	}
	if ok := b.PublishEvent(context.Background(), Event{Type: EventUpdateReceived}); ok {
		t.Fatal("expected event publish to fail after close")
	}
}

func TestContextCancellation(t *testing.T) {
	b := NewUpdateBus(0)
	t.Cleanup(b.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ok := b.PublishUpdate(ctx, delivery(1, "hello")); ok {
		t.Fatal("expected publish to fail on canceled context")
	}
	if _, ok := b.ConsumeUpdate(ctx); ok {
		t.Fatal("expected consume to fail on canceled context")
	}
}

func TestConsumeUnblocksOnClose(t *testing.T) {
	b := NewUpdateBus(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = b.ConsumeUpdate(context.Background())
	}()

	b.Close()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("consume did not unblock after close")
	}
}

func TestEventFanout(t *testing.T) {
	b := NewUpdateBus(0)
	t.Cleanup(b.Close)

	ctx := context.Background()
	eventsA, unsubA := b.SubscribeEvents(ctx, 1)
	defer unsubA()
	eventsB, unsubB := b.SubscribeEvents(ctx, 1)
	defer unsubB()

	event := Event{Type: EventUpdateHandled, RequestID: "1", ChatID: 9}
	if ok := b.PublishEvent(ctx, event); !ok {
		t.Fatal("expected event publish to succeed")
	}

	for name, events := range map[string]<-chan Event{"A": eventsA, "B": eventsB} {
		select {
		case got := <-events:
			if got.Type != EventUpdateHandled || got.ChatID != 9 {
				t.Fatalf("subscriber %s got %+v", name, got)
			}
			if got.At.IsZero() {
				t.Fatalf("subscriber %s got event without timestamp", name)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("subscriber %s did not receive event", name)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublishEvent(t *testing.T) {
	b := NewUpdateBus(0)
	t.Cleanup(b.Close)

	ctx := context.Background()
	events, unsubscribe := b.SubscribeEvents(ctx, 1)
	defer unsubscribe()

	if ok := b.PublishEvent(ctx, Event{Type: EventUpdateReceived}); !ok {
		t.Fatal("expected first event publish to succeed")
	}

	start := time.Now()
	if ok := b.PublishEvent(ctx, Event{Type: EventUpdateHandled}); !ok {
		t.Fatal("expected second event publish to succeed")
	}

	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("publish event blocked on slow subscriber")
	}

	select {
	case <-events:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected at least one event")
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	b := NewUpdateBus(0)
	t.Cleanup(b.Close)

	ctx := context.Background()
	events, unsubscribe := b.SubscribeEvents(ctx, 1)
	unsubscribe()

	if ok := b.PublishEvent(ctx, Event{Type: EventUpdateReceived}); !ok {
		t.Fatal("expected event publish to succeed")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event channel close after unsubscribe")
	}
}

func TestSubscribeEventsUnblocksOnClose(t *testing.T) {
	b := NewUpdateBus(0)

	events, _ := b.SubscribeEvents(context.Background(), 1)
	b.Close()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected event channel to be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("event subscription did not unblock after close")
	}
}
