package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/channel"
	"chatrouter/pkg/config"
	"chatrouter/pkg/platform"

	"github.com/mymmrac/telego"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter bridges Telegram long polling into router deliveries.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards every supported update to handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	sender := newSender(bot, a.log)
	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			update, ok := convertUpdate(raw)
			if !ok {
				a.log.Debug("Ignoring unsupported update", "update_id", raw.UpdateID)
				continue
			}
			if !a.updateAllowed(update) {
				continue
			}

			a.logReceived(update)

			delivery := bus.Delivery{
				Channel:    channelName,
				Update:     update,
				Sender:     sender,
				ReceivedAt: time.Now().UTC(),
			}
			if err := handler(ctx, delivery); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.log.Error("Failed to hand off telegram update", "update_id", update.ID, "error", err)
			}
		}
	}
}

// updateAllowed applies allow_from to updates that carry a sender.
func (a *Adapter) updateAllowed(update platform.Update) bool {
	user, ok := update.Sender()
	if !ok {
		return len(a.allowFrom) == 0
	}

	senderID := strconv.FormatInt(user.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring update from unauthorized sender", "sender_id", senderID, "kind", update.KindName())
		return false
	}
	return true
}

func (a *Adapter) logReceived(update platform.Update) {
	chatID, _ := update.ChatID()
	attrs := []any{"update_id", update.ID, "kind", update.KindName(), "chat_id", chatID}
	switch update.Kind {
	case platform.KindMessage:
		attrs = append(attrs, "content", previewText(update.Message.Text))
	case platform.KindEditedMessage:
		attrs = append(attrs, "content", previewText(update.EditedMessage.Text))
	case platform.KindCallbackQuery:
		attrs = append(attrs, "data", previewText(update.CallbackQuery.Data))
	}
	a.log.Info("Received update", attrs...)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
