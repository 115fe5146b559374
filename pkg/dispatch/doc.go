// Package dispatch routes inbound chat updates to handlers.
//
// A Registry indexes an application's routes once: command words, callback
// patterns in registration order, and free-text rules ordered by priority
// (state and predicate, state only, predicate only, catch-all). A Router runs
// each update through an ordered middleware pipeline around the match step
// and reports whether a handler ran.
//
// Handlers receive a *Context for one update. Handle1 to Handle3 bind typed
// parameters from the context and from a Services capability map.
package dispatch
