package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"chatrouter/pkg/dispatch"
)

// ErrPanic wraps a panic raised inside the pipeline.
var ErrPanic = errors.New("middleware: panic while routing update")

// Recover turns panics of inner middleware and handlers into errors wrapping
// ErrPanic, so they reach the transport's error hook like any other failure.
func Recover(log *slog.Logger) dispatch.Middleware {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "middleware.recover")

	return dispatch.MiddlewareFunc(func(c *dispatch.Context, next dispatch.Next) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Recovered panic", "request_id", c.RequestID(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()

		return next()
	})
}
