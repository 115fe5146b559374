package gateway

import (
	"context"
	"sync"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/channel"
	"chatrouter/pkg/config"
	"chatrouter/pkg/platform"
)

type sentText struct {
	chatID int64
	text   string
}

type recordingSender struct {
	mu      sync.Mutex
	sent    []sentText
	answers []platform.AnswerOptions
}

func (s *recordingSender) SendText(_ context.Context, chatID int64, text string, _ platform.SendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentText{chatID: chatID, text: text})
	return nil
}

func (s *recordingSender) AnswerCallback(_ context.Context, _ string, opts platform.AnswerOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, opts)
	return nil
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, 0, len(s.sent))
	for _, sent := range s.sent {
		texts = append(texts, sent.text)
	}
	return texts
}

// scriptedAdapter hands its updates to the gateway and then either returns
// or keeps running until ctx is done.
type scriptedAdapter struct {
	name    string
	updates []platform.Update
	sender  platform.Sender

	waitForCancel bool
	runErr        error

	done chan struct{}
}

func (a *scriptedAdapter) Name() string {
	return a.name
}

func (a *scriptedAdapter) Run(ctx context.Context, handler channel.Handler) error {
	for _, update := range a.updates {
		if err := handler(ctx, bus.Delivery{Channel: a.name, Update: update, Sender: a.sender}); err != nil {
			return err
		}
	}

	if a.done != nil {
		close(a.done)
	}
	if a.runErr != nil {
		return a.runErr
	}
	if a.waitForCancel {
		<-ctx.Done()
	}
	return nil
}

func textMessage(id int, chatID int64, text string) platform.Update {
	return platform.Update{
		ID:   id,
		Kind: platform.KindMessage,
		Message: &platform.Message{
			ID:   id,
			Chat: platform.Chat{ID: chatID, Type: "private"},
			From: &platform.User{ID: chatID, Username: "tester"},
			Text: text,
		},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Gateway.Host = "127.0.0.1"
	return cfg
}
