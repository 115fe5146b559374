package dispatch

import "strings"

// Handler runs when an update matches one of its route rules.
type Handler func(c *Context) error

// TextRule matches free-text messages.
//
// State, when set, requires the session to be in exactly that state. At most
// one predicate is evaluated, in the order Pattern, Contains, Regex; a rule
// without predicate matches any text.
type TextRule struct {
	State    string
	Pattern  string
	Contains string
	Regex    string
}

func (r TextRule) hasPredicate() bool {
	return r.Pattern != "" || r.Contains != "" || r.Regex != ""
}

// priority orders text rules; lower runs first.
func (r TextRule) priority() int {
	switch {
	case r.State != "" && r.hasPredicate():
		return 1
	case r.State != "":
		return 2
	case r.hasPredicate():
		return 3
	default:
		return 4
	}
}

// Route attaches routing metadata to a handler.
//
// A route may carry any number of command words and callback patterns and at
// most one text rule.
type Route struct {
	Name      string
	Handler   Handler
	Commands  []string
	Callbacks []string
	Text      *TextRule
}

// Module is an application's set of routes. The registry reads it once.
type Module interface {
	Routes() []Route
}

// Routes is a static Module.
type Routes []Route

func (r Routes) Routes() []Route { return r }

// OnCommand builds a route for one or more command words ("/start" or "start").
func OnCommand(h Handler, words ...string) Route {
	return Route{Name: "command:" + strings.Join(words, ","), Handler: h, Commands: words}
}

// OnCallback builds a route for callback patterns: "*", "prefix*" or an exact payload.
func OnCallback(h Handler, patterns ...string) Route {
	return Route{Name: "callback:" + strings.Join(patterns, ","), Handler: h, Callbacks: patterns}
}

// OnText builds a route for a free-text rule.
func OnText(h Handler, rule TextRule) Route {
	return Route{Name: "text:" + rule.describe(), Handler: h, Text: &rule}
}

// Named returns a copy of the route with the given log name.
func (r Route) Named(name string) Route {
	r.Name = name
	return r
}

// AlsoCommand adds command words to the route.
func (r Route) AlsoCommand(words ...string) Route {
	r.Commands = append(append([]string(nil), r.Commands...), words...)
	return r
}

// AlsoCallback adds callback patterns to the route.
func (r Route) AlsoCallback(patterns ...string) Route {
	r.Callbacks = append(append([]string(nil), r.Callbacks...), patterns...)
	return r
}

// AlsoText sets the route's text rule.
func (r Route) AlsoText(rule TextRule) Route {
	r.Text = &rule
	return r
}

func (r TextRule) describe() string {
	parts := make([]string, 0, 2)
	if r.State != "" {
		parts = append(parts, "state="+r.State)
	}
	switch {
	case r.Pattern != "":
		parts = append(parts, "pattern="+r.Pattern)
	case r.Contains != "":
		parts = append(parts, "contains="+r.Contains)
	case r.Regex != "":
		parts = append(parts, "regex="+r.Regex)
	}
	if len(parts) == 0 {
		return "*"
	}

	return strings.Join(parts, ",")
}
