package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMissingKey is returned by Decode when the slot is absent.
var ErrMissingKey = errors.New("session: missing key")

var emptyData = []byte("{}")

// Session is the per-conversation state shared by handlers of one chat.
//
// State is the conversation-state label; the empty string means stateless.
// Slot data is kept as a JSON object so values keep their type across reads.
type Session struct {
	State    string
	Language string

	data []byte
}

// New returns an empty stateless session.
func New() *Session {
	return &Session{data: append([]byte(nil), emptyData...)}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	return &Session{
		State:    s.State,
		Language: s.Language,
		data:     append([]byte(nil), s.raw()...),
	}
}

// Set stores value under key, replacing any previous value.
func (s *Session) Set(key string, value any) error {
	if key == "" {
		return errors.New("session key is required")
	}

	updated, err := sjson.SetBytes(s.raw(), setPath(key), value)
	if err != nil {
		return fmt.Errorf("set session key %q: %w", key, err)
	}

	s.data = updated
	return nil
}

// Delete removes key; missing keys are ignored.
func (s *Session) Delete(key string) {
	if !s.Has(key) {
		return
	}

	updated, err := sjson.DeleteBytes(s.raw(), setPath(key))
	if err != nil {
		return
	}
	s.data = updated
}

// Has reports whether key holds a value.
func (s *Session) Has(key string) bool {
	return s.lookup(key).Exists()
}

// Int returns the integer stored under key. Fractional or out-of-range
// numbers report false rather than a truncated value.
func (s *Session) Int(key string) (int64, bool) {
	res := s.lookup(key)
	if res.Type != gjson.Number {
		return 0, false
	}

	n, err := strconv.ParseInt(res.Raw, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// Float returns the number stored under key.
func (s *Session) Float(key string) (float64, bool) {
	res := s.lookup(key)
	if res.Type != gjson.Number {
		return 0, false
	}

	return res.Float(), true
}

// String returns the string stored under key.
func (s *Session) String(key string) (string, bool) {
	res := s.lookup(key)
	if res.Type != gjson.String {
		return "", false
	}

	return res.Str, true
}

// Bool returns the boolean stored under key.
func (s *Session) Bool(key string) (bool, bool) {
	res := s.lookup(key)
	switch res.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	default:
		return false, false
	}
}

// Decode unmarshals the structured value stored under key into out.
func (s *Session) Decode(key string, out any) error {
	res := s.lookup(key)
	if !res.Exists() {
		return fmt.Errorf("session key %q: %w", key, ErrMissingKey)
	}

	if err := json.Unmarshal([]byte(res.Raw), out); err != nil {
		return fmt.Errorf("decode session key %q: %w", key, err)
	}

	return nil
}

// Keys lists the slot keys in storage order.
func (s *Session) Keys() []string {
	var keys []string
	gjson.ParseBytes(s.raw()).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})

	return keys
}

// Clear drops state and every slot, keeping the language preference.
func (s *Session) Clear() {
	s.State = ""
	s.data = append([]byte(nil), emptyData...)
}

type wireSession struct {
	State    string          `json:"state,omitempty"`
	Language string          `json:"language,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// MarshalJSON encodes the session including its slot data.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSession{State: s.State, Language: s.Language, Data: s.raw()})
}

// UnmarshalJSON decodes a session produced by MarshalJSON.
func (s *Session) UnmarshalJSON(content []byte) error {
	var wire wireSession
	if err := json.Unmarshal(content, &wire); err != nil {
		return err
	}

	data := []byte(wire.Data)
	if len(data) == 0 || !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		data = append([]byte(nil), emptyData...)
	}

	s.State = wire.State
	s.Language = wire.Language
	s.data = data
	return nil
}

func (s *Session) raw() []byte {
	if s == nil || len(s.data) == 0 {
		return emptyData
	}

	return s.data
}

func (s *Session) lookup(key string) gjson.Result {
	if key == "" {
		return gjson.Result{}
	}

	return gjson.GetBytes(s.raw(), gjson.Escape(key))
}

// setPath forces an object key so numeric keys never become array indexes.
func setPath(key string) string {
	return ":" + gjson.Escape(key)
}
