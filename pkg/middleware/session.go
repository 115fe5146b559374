// Package middleware provides the standard pipeline stages for dispatch
// routers: session persistence, logging, panic recovery, per-chat
// serialization, sender allow lists and language selection.
package middleware

import (
	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/session"
)

// Session loads the chat's session before the rest of the pipeline and saves
// it afterwards.
//
// Updates without a chat id pass through without load or save. The session is
// saved only when the inner pipeline succeeded and left a non-nil session in
// the context; a handler may set it to nil to skip persistence.
func Session(store session.Store) dispatch.Middleware {
	return dispatch.MiddlewareFunc(func(c *dispatch.Context, next dispatch.Next) error {
		if store == nil {
			return next()
		}

		chatID, err := c.ChatID()
		if err != nil {
			return next()
		}

		c.SetSession(store.Get(c.Context(), chatID))

		if err := next(); err != nil {
			return err
		}

		if s := c.Session(); s != nil {
			store.Save(c.Context(), chatID, s)
		}
		return nil
	})
}
