// Package chat defines the domain entities and wire payloads shared by the
// relay, registry, history and API modules.
package chat

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Validation constants
const (
	MaxUsernameLength = 32
	MaxRoomNameLength = 100
	MaxMessageLength  = 2000
)

// Message kinds carried in the "type" field of wire payloads.
const (
	KindMessage   = "message"
	KindSystem    = "system"
	KindRateLimit = "rate_limit"
)

// System notice events.
const (
	EventJoin  = "join"
	EventLeave = "leave"
)

// Validation errors
var (
	ErrUsernameEmpty   = errors.New("username cannot be empty")
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameInvalid = errors.New("username contains invalid characters")
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid = errors.New("room name contains invalid characters")
)

// Message is the single wire shape exchanged with clients and persisted to
// history. The Type field selects which optional fields are meaningful:
// "message" carries Text, "system" carries Event, "rate_limit" carries Msg.
// TS is epoch seconds assigned by the server.
type Message struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Username string `json:"username"`
	Text     string `json:"text,omitempty"`
	Event    string `json:"event,omitempty"`
	Msg      string `json:"msg,omitempty"`
	TS       int64  `json:"ts"`
}

// HistoryItem is the read-side projection of a persisted message.
type HistoryItem struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
}

// NewUserMessage builds a message-kind payload with a server-assigned timestamp.
func NewUserMessage(room, username, text string) Message {
	return Message{
		Type:     KindMessage,
		Room:     room,
		Username: username,
		Text:     text,
		TS:       time.Now().Unix(),
	}
}

// NewSystemNotice builds a broadcast-only presence notice. System notices are
// never persisted to history.
func NewSystemNotice(room, username, event string) Message {
	return Message{
		Type:     KindSystem,
		Room:     room,
		Username: username,
		Event:    event,
		TS:       time.Now().Unix(),
	}
}

// NewRateLimitNotice builds the private notice sent to a sender whose message
// was rejected by admission control.
func NewRateLimitNotice(room, username, msg string) Message {
	return Message{
		Type:     KindRateLimit,
		Room:     room,
		Username: username,
		Msg:      msg,
		TS:       time.Now().Unix(),
	}
}

// ValidateUsername validates an identity string.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidateRoomName validates a room name. Room names ride URL paths and Redis
// key names, so path separators are rejected.
func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) || strings.ContainsAny(name, "/ \t\n") {
		return ErrRoomNameInvalid
	}
	return nil
}
