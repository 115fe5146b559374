package platform

import "time"

// Kind identifies which sub-view of an Update is populated.
type Kind string

const (
	KindMessage       Kind = "message"
	KindEditedMessage Kind = "edited_message"
	KindCallbackQuery Kind = "callback_query"
	KindMembership    Kind = "membership"
	KindOther         Kind = "other"
)

// Update is one inbound event from the chat platform.
//
// Exactly one of the pointer fields matching Kind is set; KindOther carries none.
type Update struct {
	ID            int               `json:"update_id"`
	Kind          Kind              `json:"kind"`
	Message       *Message          `json:"message,omitempty"`
	EditedMessage *Message          `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery    `json:"callback_query,omitempty"`
	Membership    *MembershipChange `json:"membership,omitempty"`
}

// Chat is the conversation an event belongs to.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// User is the sender of an event.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Message is a text message (new or edited).
type Message struct {
	ID   int       `json:"message_id"`
	Chat Chat      `json:"chat"`
	From *User     `json:"from,omitempty"`
	Text string    `json:"text,omitempty"`
	Date time.Time `json:"date"`
}

// CallbackQuery is an inline button press.
//
// Message is nil when the originating message is no longer accessible.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// MembershipChange reports a member status transition in a chat.
type MembershipChange struct {
	Chat      Chat   `json:"chat"`
	From      User   `json:"from"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// ChatID resolves the chat identifier carried by the update, if any.
func (u *Update) ChatID() (int64, bool) {
	if u == nil {
		return 0, false
	}

	switch u.Kind {
	case KindMessage:
		if u.Message != nil {
			return u.Message.Chat.ID, true
		}
	case KindEditedMessage:
		if u.EditedMessage != nil {
			return u.EditedMessage.Chat.ID, true
		}
	case KindCallbackQuery:
		if u.CallbackQuery != nil && u.CallbackQuery.Message != nil {
			return u.CallbackQuery.Message.Chat.ID, true
		}
	case KindMembership:
		if u.Membership != nil {
			return u.Membership.Chat.ID, true
		}
	}

	return 0, false
}

// Sender returns the user who produced the update, if known.
func (u *Update) Sender() (*User, bool) {
	if u == nil {
		return nil, false
	}

	switch u.Kind {
	case KindMessage:
		if u.Message != nil && u.Message.From != nil {
			return u.Message.From, true
		}
	case KindEditedMessage:
		if u.EditedMessage != nil && u.EditedMessage.From != nil {
			return u.EditedMessage.From, true
		}
	case KindCallbackQuery:
		if u.CallbackQuery != nil {
			return &u.CallbackQuery.From, true
		}
	case KindMembership:
		if u.Membership != nil {
			return &u.Membership.From, true
		}
	}

	return nil, false
}

// KindName returns the update kind for logs, defaulting to "other".
func (u *Update) KindName() string {
	if u == nil || u.Kind == "" {
		return string(KindOther)
	}

	return string(u.Kind)
}
