package middleware

import (
	"log/slog"
	"time"

	"chatrouter/pkg/dispatch"
)

// Logging logs every update on arrival and once the pipeline returned, with
// the elapsed time and whether anything handled it.
func Logging(log *slog.Logger) dispatch.Middleware {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "middleware.logging")

	return dispatch.MiddlewareFunc(func(c *dispatch.Context, next dispatch.Next) error {
		update := c.Update()
		attrs := []any{"request_id", c.RequestID(), "kind", update.KindName()}
		if user, ok := update.Sender(); ok {
			username := user.Username
			if username == "" {
				username = "unknown"
			}
			attrs = append(attrs, "user_id", user.ID, "username", username)
		}
		if chatID, ok := update.ChatID(); ok {
			attrs = append(attrs, "chat_id", chatID)
		}

		log.Info("Update received", attrs...)

		start := time.Now()
		err := next()
		elapsed := time.Since(start)

		done := []any{"request_id", c.RequestID(), "handled", c.Handled(), "duration_ms", elapsed.Milliseconds()}
		if m, ok := c.Matched(); ok {
			done = append(done, "route", m.Route)
		}
		if err != nil {
			log.Warn("Update failed", append(done, "error", err)...)
			return err
		}

		log.Info("Update processed", done...)
		return nil
	})
}
