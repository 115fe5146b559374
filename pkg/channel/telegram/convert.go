package telegram

import (
	"time"

	"chatrouter/pkg/platform"

	"github.com/mymmrac/telego"
)

// convertUpdate maps the Telegram update kinds the router understands.
// Everything else is reported as unsupported.
func convertUpdate(raw telego.Update) (platform.Update, bool) {
	update := platform.Update{ID: raw.UpdateID}

	switch {
	case raw.Message != nil:
		update.Kind = platform.KindMessage
		update.Message = convertMessage(raw.Message)
	case raw.EditedMessage != nil:
		update.Kind = platform.KindEditedMessage
		update.EditedMessage = convertMessage(raw.EditedMessage)
	case raw.CallbackQuery != nil:
		update.Kind = platform.KindCallbackQuery
		update.CallbackQuery = convertCallback(raw.CallbackQuery)
	case raw.MyChatMember != nil:
		update.Kind = platform.KindMembership
		update.Membership = convertMembership(raw.MyChatMember)
	case raw.ChatMember != nil:
		update.Kind = platform.KindMembership
		update.Membership = convertMembership(raw.ChatMember)
	default:
		return platform.Update{}, false
	}

	return update, true
}

func convertMessage(msg *telego.Message) *platform.Message {
	out := &platform.Message{
		ID:   msg.MessageID,
		Chat: convertChat(msg.Chat),
		Text: msg.Text,
		Date: unixTime(msg.Date),
	}
	if out.Text == "" {
		out.Text = msg.Caption
	}
	if msg.From != nil {
		user := convertUser(*msg.From)
		out.From = &user
	}

	return out
}

func convertCallback(query *telego.CallbackQuery) *platform.CallbackQuery {
	out := &platform.CallbackQuery{
		ID:   query.ID,
		From: convertUser(query.From),
		Data: query.Data,
	}

	switch msg := query.Message.(type) {
	case *telego.Message:
		if msg != nil {
			out.Message = convertMessage(msg)
		}
	case *telego.InaccessibleMessage:
		// Inaccessible messages still identify the chat.
		if msg != nil {
			out.Message = &platform.Message{ID: msg.MessageID, Chat: convertChat(msg.Chat)}
		}
	}

	return out
}

func convertMembership(change *telego.ChatMemberUpdated) *platform.MembershipChange {
	out := &platform.MembershipChange{
		Chat: convertChat(change.Chat),
		From: convertUser(change.From),
	}
	if change.OldChatMember != nil {
		out.OldStatus = change.OldChatMember.MemberStatus()
	}
	if change.NewChatMember != nil {
		out.NewStatus = change.NewChatMember.MemberStatus()
	}

	return out
}

func convertChat(chat telego.Chat) platform.Chat {
	title := chat.Title
	if title == "" {
		title = chat.Username
	}

	return platform.Chat{ID: chat.ID, Type: chat.Type, Title: title}
}

func convertUser(user telego.User) platform.User {
	return platform.User{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LanguageCode: user.LanguageCode,
	}
}

func unixTime(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}

	return time.Unix(seconds, 0).UTC()
}
