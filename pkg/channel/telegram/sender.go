package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatrouter/pkg/platform"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// botAPI is the part of *telego.Bot the sender needs.
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// sender implements platform.Sender on top of the Bot API.
type sender struct {
	bot botAPI
	log *slog.Logger
}

func newSender(bot botAPI, log *slog.Logger) *sender {
	return &sender{bot: bot, log: log}
}

// SendText sends a message with optional reply markup.
func (s *sender) SendText(ctx context.Context, chatID int64, text string, opts platform.SendOptions) error {
	params, err := messageParams(chatID, text, opts)
	if err != nil {
		return err
	}

	s.log.Info("Sending message", "chat_id", chatID, "content", previewText(text))
	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press.
func (s *sender) AnswerCallback(ctx context.Context, callbackID string, opts platform.AnswerOptions) error {
	if callbackID == "" {
		return errors.New("callback id is required")
	}

	params := &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            opts.Text,
		ShowAlert:       opts.ShowAlert,
		URL:             opts.URL,
		CacheTime:       opts.CacheTime,
	}
	if err := s.bot.AnswerCallbackQuery(ctx, params); err != nil {
		return fmt.Errorf("answer telegram callback: %w", err)
	}
	return nil
}

func messageParams(chatID int64, text string, opts platform.SendOptions) (*telego.SendMessageParams, error) {
	params := tu.Message(tu.ID(chatID), text)
	params.ParseMode = opts.ParseMode

	markups := 0
	if opts.Keyboard != nil {
		params.ReplyMarkup = inlineMarkup(opts.Keyboard)
		markups++
	}
	if opts.ReplyKeyboard != nil {
		params.ReplyMarkup = replyMarkup(opts.ReplyKeyboard)
		markups++
	}
	if opts.RemoveKeyboard {
		params.ReplyMarkup = tu.ReplyKeyboardRemove()
		markups++
	}
	if markups > 1 {
		return nil, errors.New("telegram messages carry at most one reply markup")
	}

	return params, nil
}

func inlineMarkup(kb *platform.InlineKeyboard) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			button := tu.InlineKeyboardButton(b.Text)
			if b.URL != "" {
				button.URL = b.URL
			} else {
				button.CallbackData = b.Data
			}
			buttons = append(buttons, button)
		}
		rows = append(rows, tu.InlineKeyboardRow(buttons...))
	}

	return tu.InlineKeyboard(rows...)
}

func replyMarkup(kb *platform.ReplyKeyboard) *telego.ReplyKeyboardMarkup {
	rows := make([][]telego.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]telego.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, tu.KeyboardButton(text))
		}
		rows = append(rows, tu.KeyboardRow(buttons...))
	}

	markup := tu.Keyboard(rows...)
	markup.ResizeKeyboard = kb.Resize
	markup.OneTimeKeyboard = kb.OneTime
	markup.Selective = kb.Selector
	return markup
}
