package gateway

import (
	"context"
	"log/slog"
	"time"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/platform"
)

const errorReplyTimeout = 10 * time.Second

// ErrorHandler is called for every update whose routing failed. It must not
// block for long; a panic inside it is recovered and logged.
type ErrorHandler func(ctx context.Context, d bus.Delivery, err error)

// DefaultErrorHandler logs the failure and, when reply is non-empty, sends it
// to the chat the update came from.
func DefaultErrorHandler(log *slog.Logger, reply string) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "gateway.errors")

	return func(ctx context.Context, d bus.Delivery, err error) {
		chatID, hasChat := d.Update.ChatID()
		log.Error("Update routing failed",
			"channel", d.Channel,
			"kind", d.Update.KindName(),
			"update_id", d.Update.ID,
			"chat_id", chatID,
			"error", err,
		)

		if reply == "" || !hasChat || d.Sender == nil {
			return
		}

		// The update deadline may already have expired.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorReplyTimeout)
		defer cancel()

		if sendErr := d.Sender.SendText(sendCtx, chatID, reply, platform.SendOptions{}); sendErr != nil {
			log.Warn("Failed to send error reply", "channel", d.Channel, "chat_id", chatID, "error", sendErr)
		}
	}
}
