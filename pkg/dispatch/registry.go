package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"chatrouter/pkg/platform"
)

const commandMarker = "/"

// MatchKind names the rule family that selected a handler.
type MatchKind string

const (
	MatchCommand  MatchKind = "command"
	MatchCallback MatchKind = "callback"
	MatchText     MatchKind = "text"
)

// Match describes the handler selected for an update.
type Match struct {
	Kind    MatchKind
	Route   string
	Key     string
	handler Handler
}

// Registry indexes a module's routes for matching.
//
// It is built once and read-only afterwards, so it may be shared by
// concurrently routed contexts without locking.
type Registry struct {
	commands  map[string]registered
	callbacks []callbackRule
	texts     []textRule
}

type registered struct {
	name    string
	handler Handler
}

type callbackRule struct {
	pattern  string
	any      bool
	isPrefix bool
	prefix   string // lowercased
	exact    string
	target   registered
}

type textRule struct {
	rule     TextRule
	contains string // lowercased
	re       *regexp.Regexp
	target   registered
}

// NewRegistry reads the module's routes into command, callback and text indexes.
//
// Duplicate command words are logged and the later route wins. Routes without
// a handler, empty command words and invalid regular expressions are
// configuration errors.
func NewRegistry(module Module, log *slog.Logger) (*Registry, error) {
	if module == nil {
		return nil, errors.New("module is required")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "dispatch.registry")

	reg := &Registry{commands: make(map[string]registered)}

	for i, route := range module.Routes() {
		if route.Handler == nil {
			return nil, fmt.Errorf("route %d (%s): handler is required", i, route.Name)
		}
		target := registered{name: routeName(route, i), handler: route.Handler}

		for _, word := range route.Commands {
			key := normalizeCommand(word)
			if key == "" {
				return nil, fmt.Errorf("route %s: empty command word", target.name)
			}
			if prev, ok := reg.commands[key]; ok {
				log.Warn("Duplicate command registration, overwriting", "command", key, "previous", prev.name, "route", target.name)
			}
			reg.commands[key] = target
		}

		for _, pattern := range route.Callbacks {
			reg.callbacks = append(reg.callbacks, newCallbackRule(pattern, target))
		}

		if route.Text != nil {
			rule, err := newTextRule(*route.Text, target)
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", target.name, err)
			}
			reg.texts = append(reg.texts, rule)
		}
	}

	// Stable sort keeps registration order within one priority tier.
	slices.SortStableFunc(reg.texts, func(a, b textRule) int {
		return a.rule.priority() - b.rule.priority()
	})

	log.Debug("Registry built", "commands", len(reg.commands), "callbacks", len(reg.callbacks), "texts", len(reg.texts))
	return reg, nil
}

// Commands lists registered command words.
func (r *Registry) Commands() []string {
	words := make([]string, 0, len(r.commands))
	for word := range r.commands {
		words = append(words, word)
	}
	slices.Sort(words)
	return words
}

// Match selects the handler for the update in c, if any.
//
// Commands and free text are taken from message updates (and edited messages
// when editedAsMessage is set); callback patterns are tried in registration
// order; text rules in priority order.
func (r *Registry) Match(c *Context, editedAsMessage bool) (Match, bool) {
	update := c.Update()

	switch update.Kind {
	case platform.KindMessage, platform.KindEditedMessage:
		if update.Kind == platform.KindEditedMessage && !editedAsMessage {
			return Match{}, false
		}
		msg := c.message()
		if msg == nil || msg.Text == "" {
			return Match{}, false
		}
		if strings.HasPrefix(msg.Text, commandMarker) {
			return r.matchCommand(msg.Text)
		}
		return r.matchText(c, msg.Text)
	case platform.KindCallbackQuery:
		if update.CallbackQuery == nil {
			return Match{}, false
		}
		return r.matchCallback(update.CallbackQuery.Data)
	default:
		return Match{}, false
	}
}

func (r *Registry) matchCommand(text string) (Match, bool) {
	word := commandWord(text)
	if word == "" {
		return Match{}, false
	}

	target, ok := r.commands[word]
	if !ok {
		return Match{}, false
	}

	return Match{Kind: MatchCommand, Route: target.name, Key: word, handler: target.handler}, true
}

func (r *Registry) matchCallback(data string) (Match, bool) {
	if data == "" {
		return Match{}, false
	}

	for _, rule := range r.callbacks {
		if rule.matches(data) {
			return Match{Kind: MatchCallback, Route: rule.target.name, Key: rule.pattern, handler: rule.target.handler}, true
		}
	}

	return Match{}, false
}

func (r *Registry) matchText(c *Context, text string) (Match, bool) {
	state := ""
	if s := c.Session(); s != nil {
		state = s.State
	}

	for _, rule := range r.texts {
		if rule.rule.State != "" && rule.rule.State != state {
			continue
		}
		if !rule.matches(text) {
			continue
		}
		return Match{Kind: MatchText, Route: rule.target.name, Key: rule.rule.describe(), handler: rule.target.handler}, true
	}

	return Match{}, false
}

func newCallbackRule(pattern string, target registered) callbackRule {
	rule := callbackRule{pattern: pattern, target: target}
	switch {
	case pattern == "*":
		rule.any = true
	case strings.HasSuffix(pattern, "*"):
		rule.isPrefix = true
		rule.prefix = strings.ToLower(strings.TrimSuffix(pattern, "*"))
	default:
		rule.exact = pattern
	}

	return rule
}

func (r callbackRule) matches(data string) bool {
	if data == "" {
		return false
	}

	switch {
	case r.any:
		return true
	case r.isPrefix:
		return strings.HasPrefix(strings.ToLower(data), r.prefix)
	default:
		return strings.EqualFold(data, r.exact)
	}
}

func newTextRule(rule TextRule, target registered) (textRule, error) {
	compiled := textRule{rule: rule, target: target, contains: strings.ToLower(rule.Contains)}
	if rule.Pattern == "" && rule.Contains == "" && rule.Regex != "" {
		re, err := regexp.Compile("(?i)" + rule.Regex)
		if err != nil {
			return textRule{}, fmt.Errorf("compile text regex %q: %w", rule.Regex, err)
		}
		compiled.re = re
	}

	return compiled, nil
}

func (r textRule) matches(text string) bool {
	switch {
	case r.rule.Pattern != "":
		return strings.EqualFold(text, r.rule.Pattern)
	case r.rule.Contains != "":
		return strings.Contains(strings.ToLower(text), r.contains)
	case r.re != nil:
		return r.re.MatchString(text)
	default:
		return true
	}
}

// commandWord extracts the lowercased command from message text:
// "/Start@MyBot arg" -> "start".
func commandWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	word := strings.TrimLeft(fields[0], commandMarker)
	if at := strings.Index(word, "@"); at > 0 {
		word = word[:at]
	}

	return strings.ToLower(word)
}

func normalizeCommand(word string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(word), commandMarker))
}

func routeName(route Route, index int) string {
	if name := strings.TrimSpace(route.Name); name != "" {
		return name
	}

	return fmt.Sprintf("route#%d", index)
}
