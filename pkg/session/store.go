package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Store provides keyed access to sessions.
//
// Get never fails: a chat seen for the first time gets a fresh empty session.
// Save is an idempotent upsert; concurrent saves for the same chat are
// last-writer-wins. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, chatID int64) *Session
	Save(ctx context.Context, chatID int64, s *Session)
	Forget(ctx context.Context, chatID int64)
}

const (
	defaultTTL        = 0
	defaultMaxEntries = 0
)

// MemoryStore keeps sessions in process memory.
//
// Sessions are copied on Get and Save so two routing passes never share one
// mutable value. Optional TTL and size limits evict least recently used chats.
type MemoryStore struct {
	mu sync.Mutex

	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	lru     *list.List              // front = most recently used
	entries map[int64]*list.Element // chat id -> element(Value=*entry)
}

type entry struct {
	chatID   int64
	session  *Session
	lastUsed time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL evicts sessions idle for longer than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(st *MemoryStore) {
		if ttl < 0 {
			ttl = 0
		}
		st.ttl = ttl
	}
}

// WithMaxEntries bounds the number of tracked chats. Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(st *MemoryStore) {
		if n < 0 {
			n = 0
		}
		st.maxEntries = n
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	st := &MemoryStore{
		ttl:        defaultTTL,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		lru:        list.New(),
		entries:    make(map[int64]*list.Element),
	}
	for _, opt := range opts {
		opt(st)
	}

	return st
}

// Get returns a snapshot of the chat's session, creating it on first access.
func (st *MemoryStore) Get(_ context.Context, chatID int64) *Session {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictExpiredLocked(now)

	if e, ok := st.entries[chatID]; ok {
		it := e.Value.(*entry)
		it.lastUsed = now
		st.lru.MoveToFront(e)
		return it.session.Clone()
	}

	fresh := New()
	st.insertLocked(chatID, fresh, now)
	return fresh.Clone()
}

// Save stores a copy of s for the chat. A nil session is ignored.
func (st *MemoryStore) Save(_ context.Context, chatID int64, s *Session) {
	if s == nil {
		return
	}

	now := st.now()
	snapshot := s.Clone()

	st.mu.Lock()
	defer st.mu.Unlock()

	if e, ok := st.entries[chatID]; ok {
		it := e.Value.(*entry)
		it.session = snapshot
		it.lastUsed = now
		st.lru.MoveToFront(e)
		return
	}

	st.insertLocked(chatID, snapshot, now)
}

// Forget drops the chat's session entirely.
func (st *MemoryStore) Forget(_ context.Context, chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if e, ok := st.entries[chatID]; ok {
		st.deleteElemLocked(e)
	}
}

// Len reports the number of tracked chats.
func (st *MemoryStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.entries)
}

func (st *MemoryStore) insertLocked(chatID int64, s *Session, now time.Time) {
	e := st.lru.PushFront(&entry{chatID: chatID, session: s, lastUsed: now})
	st.entries[chatID] = e
	st.evictOverLimitLocked()
}

func (st *MemoryStore) evictExpiredLocked(now time.Time) {
	if st.ttl <= 0 {
		return
	}

	for e := st.lru.Back(); e != nil; {
		prev := e.Prev()
		it := e.Value.(*entry)
		if now.Sub(it.lastUsed) <= st.ttl {
			return
		}
		st.deleteElemLocked(e)
		e = prev
	}
}

func (st *MemoryStore) evictOverLimitLocked() {
	if st.maxEntries <= 0 {
		return
	}

	for len(st.entries) > st.maxEntries {
		back := st.lru.Back()
		if back == nil {
			return
		}
		st.deleteElemLocked(back)
	}
}

func (st *MemoryStore) deleteElemLocked(e *list.Element) {
	it := e.Value.(*entry)
	delete(st.entries, it.chatID)
	st.lru.Remove(e)
}
