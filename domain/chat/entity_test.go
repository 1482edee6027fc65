package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"valid", "alice", nil},
		{"max length", strings.Repeat("a", MaxUsernameLength), nil},
		{"empty", "", ErrUsernameEmpty},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"invalid utf8", "ali\xffce", ErrUsernameInvalid},
		{"unicode ok", "爱丽丝", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.username, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRoomName(t *testing.T) {
	tests := []struct {
		name    string
		room    string
		wantErr error
	}{
		{"valid", "general", nil},
		{"hyphenated", "dev-chat", nil},
		{"max length", strings.Repeat("r", MaxRoomNameLength), nil},
		{"empty", "", ErrRoomNameEmpty},
		{"too long", strings.Repeat("r", MaxRoomNameLength+1), ErrRoomNameTooLong},
		{"slash", "a/b", ErrRoomNameInvalid},
		{"space", "a b", ErrRoomNameInvalid},
		{"tab", "a\tb", ErrRoomNameInvalid},
		{"newline", "a\nb", ErrRoomNameInvalid},
		{"invalid utf8", "roo\xffm", ErrRoomNameInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomName(tt.room)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRoomName(%q) = %v, want %v", tt.room, err, tt.wantErr)
			}
		})
	}
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("general", "alice", "hello")

	if msg.Type != KindMessage {
		t.Errorf("Type = %q, want %q", msg.Type, KindMessage)
	}
	if msg.Room != "general" {
		t.Errorf("Room = %q, want %q", msg.Room, "general")
	}
	if msg.Username != "alice" {
		t.Errorf("Username = %q, want %q", msg.Username, "alice")
	}
	if msg.Text != "hello" {
		t.Errorf("Text = %q, want %q", msg.Text, "hello")
	}
	if msg.TS == 0 {
		t.Error("TS not assigned")
	}
}

func TestMessageWireShape(t *testing.T) {
	// Optional fields must be absent from kinds that do not carry them.
	userMsg := NewUserMessage("general", "alice", "hi")
	payload, err := json.Marshal(userMsg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(payload), "event") || strings.Contains(string(payload), "msg") {
		t.Errorf("message payload carries notice fields: %s", payload)
	}

	notice := NewSystemNotice("general", "alice", EventJoin)
	payload, err = json.Marshal(notice)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"event":"join"`) {
		t.Errorf("system payload missing event: %s", payload)
	}
	if strings.Contains(string(payload), `"text"`) {
		t.Errorf("system payload carries text field: %s", payload)
	}

	rateMsg := NewRateLimitNotice("general", "alice", "slow down")
	payload, err = json.Marshal(rateMsg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"type":"rate_limit"`) {
		t.Errorf("rate limit payload missing type: %s", payload)
	}
	if !strings.Contains(string(payload), `"msg":"slow down"`) {
		t.Errorf("rate limit payload missing msg: %s", payload)
	}
}
