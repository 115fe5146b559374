package dispatch

import "errors"

// Dispatch errors.
var (
	// ErrWrongKind indicates a handler read a payload the update does not carry,
	// for example message text on a callback query.
	ErrWrongKind = errors.New("dispatch: payload not present for update kind")

	// ErrNoChat indicates the update has no chat identifier.
	ErrNoChat = errors.New("dispatch: update has no chat id")

	// ErrNoSender indicates the context was built without a send capability.
	ErrNoSender = errors.New("dispatch: context has no sender")

	// ErrUnresolvedDependency indicates a handler parameter could not be bound.
	ErrUnresolvedDependency = errors.New("dispatch: unresolved handler dependency")

	// ErrNextCalledTwice indicates a middleware invoked its continuation more than once.
	ErrNextCalledTwice = errors.New("dispatch: continuation called more than once")
)
