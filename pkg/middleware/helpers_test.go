package middleware

import (
	"context"
	"sync"
	"testing"

	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/platform"
	"chatrouter/pkg/session"
)

type fakeSender struct {
	mu      sync.Mutex
	texts   []string
	opts    []platform.SendOptions
	answers []platform.AnswerOptions
}

func (s *fakeSender) SendText(_ context.Context, _ int64, text string, opts platform.SendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.opts = append(s.opts, opts)
	return nil
}

func (s *fakeSender) AnswerCallback(_ context.Context, _ string, opts platform.AnswerOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, opts)
	return nil
}

func messageUpdate(chatID int64, text string) *platform.Update {
	return &platform.Update{
		Kind: platform.KindMessage,
		Message: &platform.Message{
			Chat: platform.Chat{ID: chatID},
			From: &platform.User{ID: chatID, Username: "ada", LanguageCode: "fr"},
			Text: text,
		},
	}
}

func pressUpdate(chatID int64, data string) *platform.Update {
	return &platform.Update{
		Kind: platform.KindCallbackQuery,
		CallbackQuery: &platform.CallbackQuery{
			ID:      "cb",
			From:    platform.User{ID: chatID},
			Message: &platform.Message{Chat: platform.Chat{ID: chatID}},
			Data:    data,
		},
	}
}

func newRouter(t *testing.T, routes ...dispatch.Route) *dispatch.Router {
	t.Helper()

	reg, err := dispatch.NewRegistry(dispatch.Routes(routes), nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	r, err := dispatch.New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func route(t *testing.T, r *dispatch.Router, store session.Store, update *platform.Update) (*dispatch.Context, *fakeSender, bool, error) {
	t.Helper()

	sender := &fakeSender{}
	c := dispatch.NewContext(context.Background(), update, sender, store)
	handled, err := r.Route(c)
	return c, sender, handled, err
}
