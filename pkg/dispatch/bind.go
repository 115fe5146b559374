package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"chatrouter/pkg/platform"
	"chatrouter/pkg/session"
)

// Services is the capability map handlers draw extra dependencies from.
//
// Values are registered up front by type. A scoped provider builds a fresh
// value for each handler invocation and releases it when the handler returns.
// Services must be fully populated before routing starts.
type Services struct {
	values map[reflect.Type]any
	scoped map[reflect.Type]func(ctx context.Context) (any, func(), error)
}

// NewServices returns an empty capability map.
func NewServices() *Services {
	return &Services{
		values: make(map[reflect.Type]any),
		scoped: make(map[reflect.Type]func(ctx context.Context) (any, func(), error)),
	}
}

// Provide registers a shared value for type T.
func Provide[T any](s *Services, value T) {
	t := reflect.TypeFor[T]()
	s.values[t] = value
	delete(s.scoped, t)
}

// ProvideScoped registers a per-invocation factory for type T. The release
// function, if non-nil, runs after the handler returns.
func ProvideScoped[T any](s *Services, factory func(ctx context.Context) (T, func(), error)) {
	t := reflect.TypeFor[T]()
	s.scoped[t] = func(ctx context.Context) (any, func(), error) {
		return factory(ctx)
	}
	delete(s.values, t)
}

// scope holds the scoped instances of one handler invocation.
type scope struct {
	ctx      context.Context
	services *Services

	mu        sync.Mutex
	instances map[reflect.Type]any
	releases  []func()
}

func newScope(ctx context.Context, services *Services) *scope {
	return &scope{ctx: ctx, services: services, instances: make(map[reflect.Type]any)}
}

func (s *scope) resolve(t reflect.Type) (any, bool, error) {
	if s.services == nil {
		return nil, false, nil
	}
	if value, ok := s.services.values[t]; ok {
		return value, true, nil
	}

	factory, ok := s.services.scoped[t]
	if !ok {
		return nil, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.instances[t]; ok {
		return value, true, nil
	}

	value, release, err := factory(s.ctx)
	if err != nil {
		return nil, false, fmt.Errorf("create scoped %s: %w", t, err)
	}
	s.instances[t] = value
	if release != nil {
		s.releases = append(s.releases, release)
	}

	return value, true, nil
}

// close releases scoped instances in reverse creation order.
func (s *scope) close() {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

var (
	contextType    = reflect.TypeFor[*Context]()
	stdContextType = reflect.TypeFor[context.Context]()
	senderType     = reflect.TypeFor[platform.Sender]()
	updateType     = reflect.TypeFor[*platform.Update]()
	messageType    = reflect.TypeFor[*platform.Message]()
	callbackType   = reflect.TypeFor[*platform.CallbackQuery]()
	sessionType    = reflect.TypeFor[*session.Session]()
	storeType      = reflect.TypeFor[session.Store]()
)

// Resolve binds a value of type T for the running handler.
//
// Context-derived types (*Context, context.Context, platform.Sender,
// *platform.Update, *platform.Message, *platform.CallbackQuery,
// *session.Session, session.Store) are bound directly; a message or callback
// that the update does not carry binds as nil. Other types come from the
// router's Services; scoped providers are only available while a handler
// runs. A missing nilable type (pointer, interface, map, slice,
// func, chan) binds as nil; any other missing type is ErrUnresolvedDependency.
func Resolve[T any](c *Context) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	if value, ok := c.builtin(t); ok {
		typed, _ := value.(T)
		return typed, nil
	}

	var (
		value any
		ok    bool
		err   error
	)
	switch {
	case c.scope != nil:
		value, ok, err = c.scope.resolve(t)
	case c.services != nil:
		// Outside a handler only shared values are visible.
		value, ok = c.services.values[t]
	}
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrUnresolvedDependency, err)
	}
	if ok {
		typed, isT := value.(T)
		if !isT && value != nil {
			return zero, fmt.Errorf("%w: %s registered with %T", ErrUnresolvedDependency, t, value)
		}
		return typed, nil
	}

	if nilable(t) {
		return zero, nil
	}

	return zero, fmt.Errorf("%w: %s", ErrUnresolvedDependency, t)
}

func (c *Context) builtin(t reflect.Type) (any, bool) {
	switch t {
	case contextType:
		return c, true
	case stdContextType:
		return c.ctx, true
	case senderType:
		return c.sender, true
	case updateType:
		return c.update, true
	case messageType:
		return c.message(), true
	case callbackType:
		if c.update.Kind == platform.KindCallbackQuery {
			return c.update.CallbackQuery, true
		}
		return (*platform.CallbackQuery)(nil), true
	case sessionType:
		return c.session, true
	case storeType:
		return c.store, true
	default:
		return nil, false
	}
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// Handle1 adapts a one-parameter function into a Handler, binding the
// parameter with Resolve at invocation time.
func Handle1[A any](fn func(A) error) Handler {
	return func(c *Context) error {
		a, err := Resolve[A](c)
		if err != nil {
			return err
		}
		return fn(a)
	}
}

// Handle2 is Handle1 for two parameters.
func Handle2[A, B any](fn func(A, B) error) Handler {
	return func(c *Context) error {
		a, err := Resolve[A](c)
		if err != nil {
			return err
		}
		b, err := Resolve[B](c)
		if err != nil {
			return err
		}
		return fn(a, b)
	}
}

// Handle3 is Handle1 for three parameters.
func Handle3[A, B, C any](fn func(A, B, C) error) Handler {
	return func(c *Context) error {
		a, err := Resolve[A](c)
		if err != nil {
			return err
		}
		b, err := Resolve[B](c)
		if err != nil {
			return err
		}
		cc, err := Resolve[C](c)
		if err != nil {
			return err
		}
		return fn(a, b, cc)
	}
}
