package preview

import (
	"encoding/json"
	"fmt"
	"strings"

	"previewsync/internal/patch"
)

// MessageType tags one cross-frame bridge message. The payload union is
// validated at the boundary; unknown types are rejected there rather than
// leaking into the engine.
type MessageType string

const (
	// Outbound to the embedded preview.
	MsgVisualEditEnable  MessageType = "VISUAL_EDIT_ENABLE"
	MsgVisualEditDisable MessageType = "VISUAL_EDIT_DISABLE"
	MsgCodeUpdate        MessageType = "CODE_UPDATE"

	// Inbound from the embedded preview.
	MsgVisualEditReady      MessageType = "VISUAL_EDIT_READY"
	MsgHotReloadReady       MessageType = "HOT_RELOAD_READY"
	MsgVisualEditSelect     MessageType = "VISUAL_EDIT_SELECT"
	MsgVisualEditTextUpdate MessageType = "VISUAL_EDIT_TEXT_UPDATE"
)

// Message is the wire form of a bridge message.
type Message struct {
	Type      MessageType     `json:"type"`
	FilePath  string          `json:"filePath,omitempty"`
	Content   string          `json:"content,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TextUpdate is the payload of MsgVisualEditTextUpdate.
type TextUpdate struct {
	FilePath     string `json:"filePath"`
	TextContent  string `json:"textContent"`
	OriginalText string `json:"originalText"`
}

// Inbound is a validated inbound bridge message; exactly one payload field is
// set, matching Type.
type Inbound struct {
	Type       MessageType
	Selected   *patch.SelectedElement
	TextUpdate *TextUpdate
}

// ParseInbound validates one message from the preview runtime.
func ParseInbound(data []byte) (Inbound, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("bridge: malformed message: %w", err)
	}
	switch msg.Type {
	case MsgVisualEditReady, MsgHotReloadReady:
		return Inbound{Type: msg.Type}, nil
	case MsgVisualEditSelect:
		var el patch.SelectedElement
		if err := json.Unmarshal(msg.Payload, &el); err != nil {
			return Inbound{}, fmt.Errorf("bridge: bad select payload: %w", err)
		}
		if strings.TrimSpace(el.FilePath) == "" {
			return Inbound{}, fmt.Errorf("bridge: select payload missing filePath")
		}
		return Inbound{Type: msg.Type, Selected: &el}, nil
	case MsgVisualEditTextUpdate:
		var tu TextUpdate
		if err := json.Unmarshal(msg.Payload, &tu); err != nil {
			return Inbound{}, fmt.Errorf("bridge: bad text-update payload: %w", err)
		}
		if tu.OriginalText == "" {
			return Inbound{}, fmt.Errorf("bridge: text-update payload missing originalText")
		}
		return Inbound{Type: msg.Type, TextUpdate: &tu}, nil
	}
	return Inbound{}, fmt.Errorf("bridge: unknown message type %q", msg.Type)
}

// HandshakeState tracks the visual-edit handshake with the embedded preview.
type HandshakeState string

const (
	HandshakeIdle     HandshakeState = "idle"
	HandshakeReady    HandshakeState = "ready"
	HandshakeEnabled  HandshakeState = "enabled"
	HandshakeDisabled HandshakeState = "disabled"
)
