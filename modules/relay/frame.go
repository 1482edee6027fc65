package relay

import (
	"bytes"
	"encoding/json"

	domain "github.com/example/redis-chat-relay/domain/chat"
)

// frameKind is the closed set of inbound payload shapes. Every client frame
// resolves to exactly one kind, once, before any handling.
type frameKind int

const (
	frameMessage frameKind = iota
	frameSwitch
	frameUnknown
)

// frame is one decoded inbound client payload.
type frame struct {
	kind frameKind
	text string
	room string
}

// decodeFrame resolves a raw client frame. Non-JSON input and JSON that does
// not parse are normalized to plain text messages; a missing "type" defaults
// to "message"; anything else is unknown and will be dropped.
func decodeFrame(raw []byte) frame {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return frame{kind: frameMessage, text: string(raw)}
	}

	var in struct {
		Type string `json:"type"`
		Text string `json:"text"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return frame{kind: frameMessage, text: string(raw)}
	}

	switch in.Type {
	case "", domain.KindMessage:
		return frame{kind: frameMessage, text: in.Text}
	case "switch":
		return frame{kind: frameSwitch, room: in.Room}
	default:
		return frame{kind: frameUnknown}
	}
}
