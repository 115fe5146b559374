package session

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreCreatesOnFirstAccess(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	s := st.Get(ctx, 1)
	if s == nil {
		t.Fatal("expected session")
	}
	if s.State != "" || len(s.Keys()) != 0 {
		t.Fatalf("expected empty session, got state=%q keys=%v", s.State, s.Keys())
	}
	if st.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", st.Len())
	}
}

func TestMemoryStoreSaveThenGet(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	s := st.Get(ctx, 5)
	s.State = "ask_age"
	if err := s.Set("x", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := st.Get(ctx, 5); got.State != "" {
		t.Fatalf("unsaved mutation leaked into store: state=%q", got.State)
	}

	st.Save(ctx, 5, s)
	got := st.Get(ctx, 5)
	if got.State != "ask_age" {
		t.Fatalf("state = %q, want ask_age", got.State)
	}
	if x, ok := got.Int("x"); !ok || x != 1 {
		t.Fatalf("x = (%d, %v), want (1, true)", x, ok)
	}

	st.Save(ctx, 5, nil)
	if got := st.Get(ctx, 5); got.State != "ask_age" {
		t.Fatal("nil save must not clear the session")
	}
}

func TestMemoryStoreForget(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	s := st.Get(ctx, 9)
	s.State = "x"
	st.Save(ctx, 9, s)
	st.Forget(ctx, 9)

	if got := st.Get(ctx, 9); got.State != "" {
		t.Fatalf("state after forget = %q, want empty", got.State)
	}
}

func TestMemoryStoreEvictsExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	st := NewMemoryStore(WithTTL(time.Minute))
	st.now = func() time.Time { return now }
	ctx := context.Background()

	s := st.Get(ctx, 1)
	s.State = "kept"
	st.Save(ctx, 1, s)

	now = now.Add(2 * time.Minute)
	if got := st.Get(ctx, 1); got.State != "" {
		t.Fatalf("expired session returned state %q", got.State)
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	st := NewMemoryStore(WithMaxEntries(2))
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		s := st.Get(ctx, id)
		s.State = "s" + strconv.FormatInt(id, 10)
		st.Save(ctx, id, s)
	}

	_ = st.Get(ctx, 1)
	_ = st.Get(ctx, 3)

	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}
	if got := st.Get(ctx, 1); got.State != "s1" {
		t.Fatalf("chat 1 state = %q, want s1", got.State)
	}
}

func TestMemoryStoreConcurrentDistinctChats(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	const chats = 100
	var wg sync.WaitGroup
	for i := range chats {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for round := range 20 {
				s := st.Get(ctx, id)
				if err := s.Set("owner", id); err != nil {
					t.Errorf("Set: %v", err)
					return
				}
				if err := s.Set("round", round); err != nil {
					t.Errorf("Set: %v", err)
					return
				}
				st.Save(ctx, id, s)
			}
		}(int64(i))
	}
	wg.Wait()

	for i := range chats {
		s := st.Get(ctx, int64(i))
		owner, ok := s.Int("owner")
		if !ok || owner != int64(i) {
			t.Fatalf("chat %d owner = (%d, %v)", i, owner, ok)
		}
		if round, _ := s.Int("round"); round != 19 {
			t.Fatalf("chat %d round = %d, want 19", i, round)
		}
	}
}
