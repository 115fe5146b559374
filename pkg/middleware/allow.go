package middleware

import (
	"strconv"
	"strings"

	"chatrouter/pkg/dispatch"
)

// AllowOption tunes AllowFrom.
type AllowOption func(*allowList)

// WithDenyReply answers rejected senders with text and marks their update
// handled. Without it rejected updates are dropped silently and reported
// unhandled.
func WithDenyReply(text string) AllowOption {
	return func(a *allowList) {
		a.denyReply = strings.TrimSpace(text)
	}
}

type allowList struct {
	ids       map[int64]struct{}
	usernames map[string]struct{}
	denyReply string
}

// AllowFrom lets only the listed senders through. Entries are numeric user ids
// or usernames with or without a leading "@", compared case-insensitively.
// An empty list allows everyone. Updates without a known sender are rejected
// when the list is not empty.
func AllowFrom(entries []string, opts ...AllowOption) dispatch.Middleware {
	list := newAllowList(entries)
	for _, opt := range opts {
		opt(list)
	}

	return dispatch.MiddlewareFunc(func(c *dispatch.Context, next dispatch.Next) error {
		if list.allowsAll() {
			return next()
		}

		user, ok := c.Update().Sender()
		if ok && list.allows(user.ID, user.Username) {
			return next()
		}

		if list.denyReply == "" {
			return nil
		}
		if _, err := c.ChatID(); err != nil {
			return nil
		}
		c.MarkHandled()
		if err := c.Answer(""); err != nil {
			return err
		}
		return c.Reply(list.denyReply)
	})
}

func newAllowList(entries []string) *allowList {
	list := &allowList{
		ids:       make(map[int64]struct{}),
		usernames: make(map[string]struct{}),
	}

	for _, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			list.ids[id] = struct{}{}
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(trimmed, "@"))
		if name != "" {
			list.usernames[name] = struct{}{}
		}
	}

	return list
}

func (a *allowList) allowsAll() bool {
	return len(a.ids) == 0 && len(a.usernames) == 0
}

func (a *allowList) allows(id int64, username string) bool {
	if _, ok := a.ids[id]; ok {
		return true
	}
	if username == "" {
		return false
	}

	_, ok := a.usernames[strings.ToLower(username)]
	return ok
}
