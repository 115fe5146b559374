package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/config"
	"chatrouter/pkg/platform"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewAdapterDefaults(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(config.ConsoleConfig{}, nil, &syncBuffer{}, nil); err == nil {
		t.Fatal("expected error without input")
	}

	adapter, err := NewAdapter(config.ConsoleConfig{Username: " @Ada "}, strings.NewReader(""), &syncBuffer{}, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if adapter.chatID != defaultChatID {
		t.Fatalf("chat id = %d, want %d", adapter.chatID, defaultChatID)
	}
	if adapter.user.Username != "Ada" {
		t.Fatalf("username = %q, want Ada", adapter.user.Username)
	}
	if adapter.Name() != "console" {
		t.Fatalf("name = %q", adapter.Name())
	}
}

func TestRunConvertsLinesAndStopsOnExit(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("hello\n\ncb: opt_1\n:q\nnever read\n")
	adapter, err := NewAdapter(config.ConsoleConfig{ChatID: 7, Username: "ada"}, in, &syncBuffer{}, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	var deliveries []bus.Delivery
	err = adapter.Run(context.Background(), func(_ context.Context, d bus.Delivery) error {
		deliveries = append(deliveries, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(deliveries))
	}

	msg := deliveries[0]
	if msg.Channel != "console" || msg.Sender == nil {
		t.Fatalf("delivery = %+v", msg)
	}
	if msg.Update.Kind != platform.KindMessage || msg.Update.Message.Text != "hello" {
		t.Fatalf("first update = %+v", msg.Update)
	}
	if chatID, ok := msg.Update.ChatID(); !ok || chatID != 7 {
		t.Fatalf("chat id = %d, %v", chatID, ok)
	}

	press := deliveries[1].Update
	if press.Kind != platform.KindCallbackQuery || press.CallbackQuery.Data != "opt_1" {
		t.Fatalf("second update = %+v", press)
	}
	if chatID, ok := press.ChatID(); !ok || chatID != 7 {
		t.Fatalf("callback chat id = %d, %v", chatID, ok)
	}
	if press.ID <= msg.Update.ID {
		t.Fatalf("update ids not increasing: %d then %d", msg.Update.ID, press.ID)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	reader, writer := io.Pipe()
	defer writer.Close()

	adapter, err := NewAdapter(config.ConsoleConfig{}, reader, &syncBuffer{}, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.Run(ctx, func(context.Context, bus.Delivery) error { return nil })
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}

func TestSendTextRendersKeyboards(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	adapter, err := NewAdapter(config.ConsoleConfig{}, strings.NewReader(""), out, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	err = adapter.SendText(context.Background(), 1, "Pick one\nor leave", platform.SendOptions{
		Keyboard: &platform.InlineKeyboard{Rows: [][]platform.InlineButton{
			{{Text: "One", Data: "opt_1"}, {Text: "Docs", URL: "https://example.com"}},
		}},
		ReplyKeyboard: &platform.ReplyKeyboard{Rows: [][]string{{"Cancel ❌"}}},
	})
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}

	got := out.String()
	for _, want := range []string{"🤖 Pick one", "🤖 or leave", "[One → cb:opt_1]", "[Docs → https://example.com]", "(Cancel ❌)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}

	// A later button press belongs to the reply just printed.
	update := adapter.updateFor("cb:opt_1")
	if update.CallbackQuery.Message == nil || update.CallbackQuery.Message.Text != "Pick one\nor leave" {
		t.Fatalf("callback message = %+v", update.CallbackQuery.Message)
	}
}

func TestAnswerCallback(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	adapter, err := NewAdapter(config.ConsoleConfig{}, strings.NewReader(""), out, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if err := adapter.AnswerCallback(context.Background(), "cb", platform.AnswerOptions{}); err != nil {
		t.Fatalf("AnswerCallback: %v", err)
	}
	if out.String() != "" {
		t.Fatalf("empty answer printed %q", out.String())
	}

	if err := adapter.AnswerCallback(context.Background(), "cb", platform.AnswerOptions{Text: "Unsupported", ShowAlert: true}); err != nil {
		t.Fatalf("AnswerCallback: %v", err)
	}
	if !strings.Contains(out.String(), "⚠️ Unsupported") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestIsExitCommand(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]bool{"exit": true, " QUIT ": true, ":q": true, "/start": false, "exits": false} {
		if got := isExitCommand(input); got != want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", input, got, want)
		}
	}
}
