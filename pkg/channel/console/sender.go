package console

import (
	"context"
	"fmt"
	"strings"

	"chatrouter/pkg/platform"
)

// SendText prints a reply and its keyboard.
func (a *Adapter) SendText(_ context.Context, chatID int64, text string, opts platform.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n")
	for _, line := range replyLines(text) {
		b.WriteString(replyPrefix + line + "\n")
	}
	b.WriteString(renderKeyboard(opts))
	b.WriteString(inputPrompt)

	if _, err := fmt.Fprint(a.out, b.String()); err != nil {
		return fmt.Errorf("write console reply: %w", err)
	}

	a.lastMessage = &platform.Message{
		ID:   a.nextUpdateID,
		Chat: platform.Chat{ID: chatID, Type: "private", Title: channelName},
		Text: text,
	}
	return nil
}

// AnswerCallback prints the callback notification, if any.
func (a *Adapter) AnswerCallback(_ context.Context, _ string, opts platform.AnswerOptions) error {
	text := strings.TrimSpace(opts.Text)
	if text == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	marker := "🔔 "
	if opts.ShowAlert {
		marker = "⚠️ "
	}
	if _, err := fmt.Fprintf(a.out, "\n%s%s\n%s", marker, text, inputPrompt); err != nil {
		return fmt.Errorf("write console answer: %w", err)
	}
	return nil
}

func replyLines(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

// renderKeyboard shows inline buttons with the input that presses them and
// reply keyboard buttons as plain choices.
func renderKeyboard(opts platform.SendOptions) string {
	var b strings.Builder

	if opts.Keyboard != nil {
		for _, row := range opts.Keyboard.Rows {
			cells := make([]string, 0, len(row))
			for _, button := range row {
				if button.URL != "" {
					cells = append(cells, fmt.Sprintf("[%s → %s]", button.Text, button.URL))
					continue
				}
				cells = append(cells, fmt.Sprintf("[%s → %s%s]", button.Text, callbackPrefix, button.Data))
			}
			b.WriteString("   " + strings.Join(cells, " ") + "\n")
		}
	}

	if opts.ReplyKeyboard != nil {
		for _, row := range opts.ReplyKeyboard.Rows {
			cells := make([]string, 0, len(row))
			for _, text := range row {
				cells = append(cells, "("+text+")")
			}
			b.WriteString("   " + strings.Join(cells, " ") + "\n")
		}
	}

	return b.String()
}
