// Package console is a line-oriented channel for trying bots locally.
//
// Every input line becomes a text message of one fixed chat. A line of the
// form "cb:<data>" presses an inline button with that payload instead.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/channel"
	"chatrouter/pkg/config"
	"chatrouter/pkg/platform"
)

const (
	channelName    = "console"
	callbackPrefix = "cb:"
	defaultChatID  = 1
	defaultUser    = "console"
	inputPrompt    = "👨🏻 "
	replyPrefix    = "🤖 "
)

// Adapter reads updates from in and writes replies to out.
type Adapter struct {
	chatID int64
	user   platform.User
	in     io.Reader
	out    io.Writer
	log    *slog.Logger

	mu           sync.Mutex
	nextUpdateID int
	lastMessage  *platform.Message
}

// NewAdapter builds a console channel for cfg.
func NewAdapter(cfg config.ConsoleConfig, in io.Reader, out io.Writer, log *slog.Logger) (*Adapter, error) {
	if in == nil || out == nil {
		return nil, errors.New("console input and output are required")
	}
	if log == nil {
		log = slog.Default()
	}

	chatID := cfg.ChatID
	if chatID == 0 {
		chatID = defaultChatID
	}
	username := strings.TrimPrefix(strings.TrimSpace(cfg.Username), "@")
	if username == "" {
		username = defaultUser
	}

	return &Adapter{
		chatID: chatID,
		user:   platform.User{ID: chatID, Username: username, FirstName: username},
		in:     in,
		out:    out,
		log:    log.With("component", "channel.console"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run reads lines until input ends, ctx is done, or the user types an exit command.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	stop := make(chan struct{})
	defer close(stop)

	lines, scanErr := a.scan(stop)
	a.printPrompt()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}

			input := strings.TrimSpace(line)
			if input == "" {
				a.printPrompt()
				continue
			}
			if isExitCommand(input) {
				return nil
			}

			delivery := bus.Delivery{
				Channel:    channelName,
				Update:     a.updateFor(input),
				Sender:     a,
				ReceivedAt: time.Now().UTC(),
			}
			if err := handler(ctx, delivery); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.log.Error("Failed to hand off console update", "error", err)
			}
		}
	}
}

// scan reads input lines on a separate goroutine so Run can honor ctx.
func (a *Adapter) scan(stop <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read console input: %w", err)
			return
		}
		errs <- nil
	}()

	return lines, errs
}

// updateFor turns one input line into a message or a button press.
func (a *Adapter) updateFor(input string) platform.Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextUpdateID++
	id := a.nextUpdateID

	if data, ok := strings.CutPrefix(input, callbackPrefix); ok {
		return platform.Update{
			ID:   id,
			Kind: platform.KindCallbackQuery,
			CallbackQuery: &platform.CallbackQuery{
				ID:      fmt.Sprintf("console-%d", id),
				From:    a.user,
				Message: a.lastMessageLocked(),
				Data:    strings.TrimSpace(data),
			},
		}
	}

	user := a.user
	msg := &platform.Message{
		ID:   id,
		Chat: platform.Chat{ID: a.chatID, Type: "private", Title: channelName},
		From: &user,
		Text: input,
		Date: time.Now().UTC(),
	}
	return platform.Update{ID: id, Kind: platform.KindMessage, Message: msg}
}

// lastMessageLocked returns the message a pressed button belongs to; console
// keyboards always belong to the most recent reply.
func (a *Adapter) lastMessageLocked() *platform.Message {
	if a.lastMessage != nil {
		return a.lastMessage
	}
	return &platform.Message{Chat: platform.Chat{ID: a.chatID, Type: "private", Title: channelName}}
}

func (a *Adapter) printPrompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = fmt.Fprint(a.out, inputPrompt)
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
