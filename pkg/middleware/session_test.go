package middleware

import (
	"errors"
	"testing"

	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/platform"
	"chatrouter/pkg/session"
)

func TestSessionPersistsHandlerMutation(t *testing.T) {
	store := session.NewMemoryStore()
	r := newRouter(t, dispatch.OnCommand(func(c *dispatch.Context) error {
		c.Session().State = "ask_age"
		return c.Session().Set("x", 1)
	}, "register"))
	r.Use(Session(store))

	if _, _, _, err := route(t, r, store, messageUpdate(8, "/register")); err != nil {
		t.Fatalf("Route: %v", err)
	}

	s := store.Get(t.Context(), 8)
	if s.State != "ask_age" {
		t.Fatalf("state = %q, want ask_age", s.State)
	}
	if x, ok := s.Int("x"); !ok || x != 1 {
		t.Fatalf("x = %d (found=%v), want 1", x, ok)
	}
}

func TestSessionFeedsStateGuards(t *testing.T) {
	store := session.NewMemoryStore()
	var got string
	r := newRouter(t,
		dispatch.OnText(func(*dispatch.Context) error { got = "age"; return nil }, dispatch.TextRule{State: "ask_age"}),
		dispatch.OnText(func(*dispatch.Context) error { got = "any"; return nil }, dispatch.TextRule{}),
	)
	r.Use(Session(store))

	s := store.Get(t.Context(), 2)
	s.State = "ask_age"
	store.Save(t.Context(), 2, s)

	if _, _, _, err := route(t, r, store, messageUpdate(2, "42")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got != "age" {
		t.Fatalf("routed to %q, want age", got)
	}
}

func TestSessionSkipsUpdatesWithoutChat(t *testing.T) {
	store := session.NewMemoryStore()
	var sawSession bool
	r := newRouter(t)
	r.Use(Session(store), dispatch.MiddlewareFunc(func(c *dispatch.Context, next dispatch.Next) error {
		sawSession = c.Session() != nil
		return next()
	}))

	update := &platform.Update{Kind: platform.KindOther}
	if _, _, _, err := route(t, r, store, update); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if sawSession {
		t.Fatal("expected no session for update without chat")
	}
	if store.Len() != 0 {
		t.Fatalf("store Len() = %d, want 0", store.Len())
	}
}

func TestSessionNotSavedOnError(t *testing.T) {
	store := session.NewMemoryStore()
	boom := errors.New("boom")
	r := newRouter(t, dispatch.OnCommand(func(c *dispatch.Context) error {
		c.Session().State = "half_done"
		return boom
	}, "go"))
	r.Use(Session(store))

	if _, _, _, err := route(t, r, store, messageUpdate(4, "/go")); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if s := store.Get(t.Context(), 4); s.State != "" {
		t.Fatalf("state = %q, want unsaved", s.State)
	}
}

func TestSessionDiscardedByHandler(t *testing.T) {
	store := session.NewMemoryStore()
	r := newRouter(t, dispatch.OnCommand(func(c *dispatch.Context) error {
		c.Session().State = "discard me"
		c.SetSession(nil)
		return nil
	}, "go"))
	r.Use(Session(store))

	if _, _, _, err := route(t, r, store, messageUpdate(4, "/go")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if s := store.Get(t.Context(), 4); s.State != "" {
		t.Fatalf("state = %q, want discarded", s.State)
	}
}
