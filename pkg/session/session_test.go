package session

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSessionTypedSlots(t *testing.T) {
	s := New()

	if err := s.Set("age", 30); err != nil {
		t.Fatalf("Set age: %v", err)
	}
	if err := s.Set("name", "Ada"); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	if err := s.Set("verified", true); err != nil {
		t.Fatalf("Set verified: %v", err)
	}

	if got, ok := s.Int("age"); !ok || got != 30 {
		t.Fatalf("Int(age) = (%d, %v), want (30, true)", got, ok)
	}
	if got, ok := s.String("name"); !ok || got != "Ada" {
		t.Fatalf("String(name) = (%q, %v), want (Ada, true)", got, ok)
	}
	if got, ok := s.Bool("verified"); !ok || !got {
		t.Fatalf("Bool(verified) = (%v, %v), want (true, true)", got, ok)
	}

	if _, ok := s.Int("name"); ok {
		t.Fatal("Int(name) should not coerce a string")
	}
	if _, ok := s.String("missing"); ok {
		t.Fatal("String(missing) should report absence")
	}
}

func TestSessionIntRejectsFractions(t *testing.T) {
	s := New()
	if err := s.Set("ratio", 1.5); err != nil {
		t.Fatalf("Set ratio: %v", err)
	}
	if err := s.Set("count", 3); err != nil {
		t.Fatalf("Set count: %v", err)
	}

	if got, ok := s.Int("ratio"); ok {
		t.Fatalf("Int(ratio) = (%d, true), want (0, false)", got)
	}
	if got, ok := s.Float("ratio"); !ok || got != 1.5 {
		t.Fatalf("Float(ratio) = (%v, %v), want (1.5, true)", got, ok)
	}
	if got, ok := s.Int("count"); !ok || got != 3 {
		t.Fatalf("Int(count) = (%d, %v), want (3, true)", got, ok)
	}
}

func TestSessionKeysWithPathCharacters(t *testing.T) {
	s := New()

	keys := []string{"a.b", "*", "1", "x|y", "q?"}
	for i, key := range keys {
		if err := s.Set(key, i); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
	}

	for i, key := range keys {
		got, ok := s.Int(key)
		if !ok || got != int64(i) {
			t.Fatalf("Int(%q) = (%d, %v), want (%d, true)", key, got, ok, i)
		}
	}

	if got := len(s.Keys()); got != len(keys) {
		t.Fatalf("len(Keys()) = %d, want %d", got, len(keys))
	}
}

func TestSessionOverwriteAndDelete(t *testing.T) {
	s := New()

	if err := s.Set("x", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("x", "one"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got, ok := s.String("x"); !ok || got != "one" {
		t.Fatalf("String(x) = (%q, %v), want (one, true)", got, ok)
	}

	s.Delete("x")
	if s.Has("x") {
		t.Fatal("expected x to be deleted")
	}
	s.Delete("never-set")

	if err := s.Set("", 1); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestSessionDecodeStructured(t *testing.T) {
	type profile struct {
		Country string   `json:"country"`
		Tags    []string `json:"tags"`
	}

	s := New()
	if err := s.Set("profile", profile{Country: "DE", Tags: []string{"a", "b"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got profile
	if err := s.Decode("profile", &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Country != "DE" || len(got.Tags) != 2 {
		t.Fatalf("Decode = %+v", got)
	}

	if err := s.Decode("missing", &got); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("Decode missing error = %v, want ErrMissingKey", err)
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := New()
	s.State = "ask_age"
	if err := s.Set("x", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c := s.Clone()
	c.State = "ask_name"
	if err := c.Set("x", 2); err != nil {
		t.Fatalf("Set on clone: %v", err)
	}

	if s.State != "ask_age" {
		t.Fatalf("original state = %q, want ask_age", s.State)
	}
	if got, _ := s.Int("x"); got != 1 {
		t.Fatalf("original x = %d, want 1", got)
	}
}

func TestSessionZeroValueUsable(t *testing.T) {
	var s Session
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set on zero session: %v", err)
	}
	if got, ok := s.String("k"); !ok || got != "v" {
		t.Fatalf("String(k) = (%q, %v)", got, ok)
	}
}

func TestSessionJSONRoundTripKeepsData(t *testing.T) {
	s := New()
	s.State = "ask_name"
	s.Language = "de-DE"
	if err := s.Set("age", 41); err != nil {
		t.Fatalf("Set: %v", err)
	}

	content, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Session
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.State != "ask_name" || decoded.Language != "de-DE" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if got, ok := decoded.Int("age"); !ok || got != 41 {
		t.Fatalf("decoded age = (%d, %v)", got, ok)
	}
}

func TestSessionClearKeepsLanguage(t *testing.T) {
	s := New()
	s.State = "ask_age"
	s.Language = "en-US"
	_ = s.Set("x", 1)

	s.Clear()
	if s.State != "" || s.Has("x") {
		t.Fatalf("Clear left state=%q has(x)=%v", s.State, s.Has("x"))
	}
	if s.Language != "en-US" {
		t.Fatalf("language = %q, want en-US", s.Language)
	}
}
