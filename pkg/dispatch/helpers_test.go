package dispatch

import (
	"context"
	"sync"

	"chatrouter/pkg/platform"
	"chatrouter/pkg/session"
)

type sentText struct {
	chatID int64
	text   string
	opts   platform.SendOptions
}

type recordingSender struct {
	mu      sync.Mutex
	sent    []sentText
	answers []string
}

func (s *recordingSender) SendText(_ context.Context, chatID int64, text string, opts platform.SendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentText{chatID: chatID, text: text, opts: opts})
	return nil
}

func (s *recordingSender) AnswerCallback(_ context.Context, callbackID string, _ platform.AnswerOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, callbackID)
	return nil
}

func textUpdate(chatID int64, text string) *platform.Update {
	return &platform.Update{
		ID:   1,
		Kind: platform.KindMessage,
		Message: &platform.Message{
			ID:   10,
			Chat: platform.Chat{ID: chatID, Type: "private"},
			From: &platform.User{ID: chatID, FirstName: "Ada"},
			Text: text,
		},
	}
}

func callbackUpdate(chatID int64, data string) *platform.Update {
	return &platform.Update{
		ID:   2,
		Kind: platform.KindCallbackQuery,
		CallbackQuery: &platform.CallbackQuery{
			ID:      "cb-1",
			From:    platform.User{ID: chatID},
			Message: &platform.Message{ID: 11, Chat: platform.Chat{ID: chatID}},
			Data:    data,
		},
	}
}

func newTestContext(update *platform.Update) (*Context, *recordingSender) {
	sender := &recordingSender{}
	return NewContext(context.Background(), update, sender, session.NewMemoryStore()), sender
}

// recorder builds handlers that note their name when invoked.
type recorder struct {
	called []string
}

func (r *recorder) handler(name string) Handler {
	return func(*Context) error {
		r.called = append(r.called, name)
		return nil
	}
}

func (r *recorder) last() string {
	if len(r.called) == 0 {
		return ""
	}
	return r.called[len(r.called)-1]
}
