package dispatch

import (
	"context"
	"fmt"

	"chatrouter/pkg/platform"
	"chatrouter/pkg/session"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Context is the execution context of one routing pass.
//
// A Context is created per inbound update and never reused. Middleware and
// handlers of the same pass share it; it is not safe for concurrent use by
// goroutines the handler spawns.
type Context struct {
	ctx       context.Context
	update    *platform.Update
	sender    platform.Sender
	store     session.Store
	session   *session.Session
	locale    language.Tag
	requestID string

	services *Services
	scope    *scope
	handled  bool
	match    *Match
}

// NewContext binds one update to its send capability and session store.
func NewContext(ctx context.Context, update *platform.Update, sender platform.Sender, store session.Store) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if update == nil {
		update = &platform.Update{Kind: platform.KindOther}
	}

	return &Context{
		ctx:       ctx,
		update:    update,
		sender:    sender,
		store:     store,
		locale:    language.Und,
		requestID: uuid.Must(uuid.NewV7()).String(),
	}
}

// Context returns the cancellation signal of the routing pass.
func (c *Context) Context() context.Context { return c.ctx }

// SetContext replaces the cancellation signal, e.g. to apply a deadline.
func (c *Context) SetContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

func (c *Context) Update() *platform.Update { return c.update }

func (c *Context) Sender() platform.Sender { return c.sender }

func (c *Context) Store() session.Store { return c.store }

func (c *Context) RequestID() string { return c.requestID }

// Session returns the loaded session, or nil when no middleware loaded one.
func (c *Context) Session() *session.Session { return c.session }

// SetSession installs the session for this pass. Setting nil discards it.
func (c *Context) SetSession(s *session.Session) { c.session = s }

// Locale returns the resolved language, language.Und when unknown.
func (c *Context) Locale() language.Tag { return c.locale }

func (c *Context) SetLocale(tag language.Tag) { c.locale = tag }

// MarkHandled reports the update as handled even if no registered handler runs.
// Middleware that reply on their own and short-circuit use this.
func (c *Context) MarkHandled() { c.handled = true }

// Handled reports whether a handler ran or a middleware marked the update
// handled. Middleware read it after next returns.
func (c *Context) Handled() bool { return c.handled }

// Matched returns the route selected for this update, once the router matched one.
func (c *Context) Matched() (Match, bool) {
	if c.match == nil {
		return Match{}, false
	}
	return *c.match, true
}

// ChatID returns the chat the update belongs to.
func (c *Context) ChatID() (int64, error) {
	id, ok := c.update.ChatID()
	if !ok {
		return 0, fmt.Errorf("%w: %s update", ErrNoChat, c.update.KindName())
	}

	return id, nil
}

// Message returns the message of a message or edited-message update.
func (c *Context) Message() (*platform.Message, error) {
	if msg := c.message(); msg != nil {
		return msg, nil
	}

	return nil, fmt.Errorf("%w: message on %s update", ErrWrongKind, c.update.KindName())
}

// Text returns the text of a message update.
func (c *Context) Text() (string, error) {
	msg, err := c.Message()
	if err != nil {
		return "", err
	}

	return msg.Text, nil
}

// Callback returns the callback query of a callback update.
func (c *Context) Callback() (*platform.CallbackQuery, error) {
	if c.update.Kind == platform.KindCallbackQuery && c.update.CallbackQuery != nil {
		return c.update.CallbackQuery, nil
	}

	return nil, fmt.Errorf("%w: callback query on %s update", ErrWrongKind, c.update.KindName())
}

// CallbackData returns the payload of the pressed button.
func (c *Context) CallbackData() (string, error) {
	cb, err := c.Callback()
	if err != nil {
		return "", err
	}

	return cb.Data, nil
}

// ReplyOption tunes Reply.
type ReplyOption func(*platform.SendOptions)

// WithKeyboard attaches an inline keyboard.
func WithKeyboard(k *platform.InlineKeyboard) ReplyOption {
	return func(o *platform.SendOptions) { o.Keyboard = k }
}

// WithReplyKeyboard replaces the user's keyboard.
func WithReplyKeyboard(k *platform.ReplyKeyboard) ReplyOption {
	return func(o *platform.SendOptions) { o.ReplyKeyboard = k }
}

// WithRemoveKeyboard removes a previously shown reply keyboard.
func WithRemoveKeyboard() ReplyOption {
	return func(o *platform.SendOptions) { o.RemoveKeyboard = true }
}

// WithParseMode sets the platform parse mode (e.g. "Markdown", "HTML").
func WithParseMode(mode string) ReplyOption {
	return func(o *platform.SendOptions) { o.ParseMode = mode }
}

// Reply sends text to the update's chat.
func (c *Context) Reply(text string, opts ...ReplyOption) error {
	if c.sender == nil {
		return ErrNoSender
	}

	chatID, err := c.ChatID()
	if err != nil {
		return err
	}

	var sendOpts platform.SendOptions
	for _, opt := range opts {
		opt(&sendOpts)
	}

	return c.sender.SendText(c.ctx, chatID, text, sendOpts)
}

// Answer acknowledges the callback query, optionally showing text.
// It is a no-op on non-callback updates.
func (c *Context) Answer(text string) error {
	return c.AnswerWith(platform.AnswerOptions{Text: text})
}

// AnswerWith acknowledges the callback query with full options.
func (c *Context) AnswerWith(opts platform.AnswerOptions) error {
	cb, err := c.Callback()
	if err != nil {
		return nil
	}
	if c.sender == nil {
		return ErrNoSender
	}

	return c.sender.AnswerCallback(c.ctx, cb.ID, opts)
}

func (c *Context) message() *platform.Message {
	switch c.update.Kind {
	case platform.KindMessage:
		return c.update.Message
	case platform.KindEditedMessage:
		return c.update.EditedMessage
	default:
		return nil
	}
}
