package platform

import "context"

// Sender is the outbound capability of a chat platform.
//
// Implementations own transport concerns (network, retries, rate limiting);
// callers only see the returned error.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, opts AnswerOptions) error
}

// SendOptions tunes one outgoing text message.
type SendOptions struct {
	ParseMode      string
	Keyboard       *InlineKeyboard
	ReplyKeyboard  *ReplyKeyboard
	RemoveKeyboard bool
}

// AnswerOptions tunes the answer to a callback query.
type AnswerOptions struct {
	Text      string
	ShowAlert bool
	URL       string
	CacheTime int
}

// InlineButton is one button attached to a message.
type InlineButton struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// InlineKeyboard is a grid of inline buttons, one slice per row.
type InlineKeyboard struct {
	Rows [][]InlineButton `json:"rows"`
}

// ReplyKeyboard replaces the user's keyboard with text buttons.
type ReplyKeyboard struct {
	Rows     [][]string `json:"rows"`
	Resize   bool       `json:"resize,omitempty"`
	OneTime  bool       `json:"one_time,omitempty"`
	Selector bool       `json:"selector,omitempty"`
}
