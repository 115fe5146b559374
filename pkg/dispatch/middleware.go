package dispatch

// Next runs the rest of the pipeline: inner middleware and then the matched
// handler. It must be called at most once.
type Next func() error

// Middleware wraps routing with cross-cutting behavior.
//
// A middleware may call next and act before or after it, or skip next to
// short-circuit: no inner middleware or handler runs and the update counts as
// unhandled unless the middleware calls MarkHandled. Errors from next should
// normally be returned so outer middleware and the transport observe them.
type Middleware interface {
	Invoke(c *Context, next Next) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(c *Context, next Next) error

// Invoke implements Middleware.
func (f MiddlewareFunc) Invoke(c *Context, next Next) error {
	return f(c, next)
}

// chain walks the middleware list with an index cursor; the first middleware
// is outermost and final runs after the last one calls next.
type chain struct {
	c          *Context
	middleware []Middleware
	final      func(*Context) (bool, error)
}

func (ch *chain) run() (bool, error) {
	err := ch.next(0)()
	return ch.c.handled, err
}

func (ch *chain) next(index int) Next {
	called := false
	return func() error {
		if called {
			return ErrNextCalledTwice
		}
		called = true

		if index < len(ch.middleware) {
			return ch.middleware[index].Invoke(ch.c, ch.next(index+1))
		}

		handled, err := ch.final(ch.c)
		if handled {
			ch.c.handled = true
		}
		return err
	}
}
