package middleware

import (
	"context"
	"sync"

	"chatrouter/pkg/dispatch"
)

// SerializeChat runs updates of the same chat one at a time so session
// read-modify-write cycles do not overwrite each other. Updates of different
// chats still run concurrently; updates without a chat id are not serialized.
//
// Install it outside Session. Waiting for the lock honors the update's
// context.
func SerializeChat() dispatch.Middleware {
	locks := &chatLocks{locks: make(map[int64]*chatLock)}

	return dispatch.MiddlewareFunc(func(c *dispatch.Context, next dispatch.Next) error {
		chatID, err := c.ChatID()
		if err != nil {
			return next()
		}

		if err := locks.acquire(c.Context(), chatID); err != nil {
			return err
		}
		defer locks.release(chatID)

		return next()
	})
}

type chatLock struct {
	sem  chan struct{}
	refs int
}

// chatLocks is a keyed mutex; entries are dropped once nobody holds or waits
// for them.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

func (l *chatLocks) acquire(ctx context.Context, chatID int64) error {
	l.mu.Lock()
	lock, ok := l.locks[chatID]
	if !ok {
		lock = &chatLock{sem: make(chan struct{}, 1)}
		l.locks[chatID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(chatID, lock)
		return ctx.Err()
	}
}

func (l *chatLocks) release(chatID int64) {
	l.mu.Lock()
	lock := l.locks[chatID]
	l.mu.Unlock()
	if lock == nil {
		return
	}

	<-lock.sem
	l.unref(chatID, lock)
}

func (l *chatLocks) unref(chatID int64, lock *chatLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, chatID)
	}
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
