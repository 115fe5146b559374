package dispatch

import (
	"errors"
	"log/slog"
	"time"
)

// OnMatchFunc is called after a handler was selected, before it runs.
type OnMatchFunc func(c *Context, m Match)

// OnHandledFunc is called after the selected handler returned.
type OnHandledFunc func(c *Context, m Match, err error, duration time.Duration)

// OnNoMatchFunc is called when no route accepts the update.
type OnNoMatchFunc func(c *Context)

// Router runs updates through the middleware pipeline into the registry.
//
// Usage:
//  1. Build a Registry from the application's routes
//  2. Create a router with New and add middleware with Use
//  3. Call Route once per update, possibly from many goroutines
//
// Do not call Use after routing started.
type Router struct {
	registry   *Registry
	middleware []Middleware
	services   *Services
	log        *slog.Logger

	editedAsMessage bool
	onMatch         []OnMatchFunc
	onHandled       []OnHandledFunc
	onNoMatch       []OnNoMatchFunc
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}

// WithServices sets the capability map handler parameters are bound from.
func WithServices(s *Services) Option {
	return func(r *Router) {
		r.services = s
	}
}

// WithEditedMessages routes edited text messages like new ones.
func WithEditedMessages() Option {
	return func(r *Router) {
		r.editedAsMessage = true
	}
}

// WithOnMatch adds a hook called when a handler is selected.
// Multiple hooks are called in order.
func WithOnMatch(fn OnMatchFunc) Option {
	return func(r *Router) {
		r.onMatch = append(r.onMatch, fn)
	}
}

// WithOnHandled adds a hook called after the selected handler returned.
func WithOnHandled(fn OnHandledFunc) Option {
	return func(r *Router) {
		r.onHandled = append(r.onHandled, fn)
	}
}

// WithOnNoMatch adds a hook called when nothing matches the update.
func WithOnNoMatch(fn OnNoMatchFunc) Option {
	return func(r *Router) {
		r.onNoMatch = append(r.onNoMatch, fn)
	}
}

// New creates a Router over registry.
func New(registry *Registry, opts ...Option) (*Router, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}

	r := &Router{
		registry: registry,
		services: NewServices(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "dispatch.router")

	return r, nil
}

// Use appends middleware. The first middleware added is the outermost.
func (r *Router) Use(mw ...Middleware) {
	for _, m := range mw {
		if m != nil {
			r.middleware = append(r.middleware, m)
		}
	}
}

// Route runs c through the pipeline and reports whether a handler ran.
//
// Not matching is not an error. Errors from middleware or the handler are
// returned unchanged; the router never retries.
func (r *Router) Route(c *Context) (bool, error) {
	if c == nil {
		return false, errors.New("context is required")
	}
	c.services = r.services

	ch := &chain{c: c, middleware: r.middleware, final: r.dispatch}
	return ch.run()
}

// dispatch matches and invokes the handler at the center of the pipeline.
func (r *Router) dispatch(c *Context) (bool, error) {
	m, ok := r.registry.Match(c, r.editedAsMessage)
	if !ok {
		r.log.Debug("No route matched", "request_id", c.RequestID(), "kind", c.Update().KindName())
		for _, fn := range r.onNoMatch {
			fn(c)
		}
		return false, nil
	}

	c.match = &m
	r.log.Debug("Route matched", "request_id", c.RequestID(), "match", m.Kind, "route", m.Route, "key", m.Key)
	for _, fn := range r.onMatch {
		fn(c, m)
	}

	start := time.Now()
	err := r.invoke(c, m)
	duration := time.Since(start)

	for _, fn := range r.onHandled {
		fn(c, m, err, duration)
	}

	return true, err
}

// invoke runs the handler inside a fresh dependency scope and releases the
// scope once the handler returned.
func (r *Router) invoke(c *Context, m Match) error {
	sc := newScope(c.ctx, c.services)
	c.scope = sc
	defer func() {
		c.scope = nil
		sc.close()
	}()

	return m.handler(c)
}
