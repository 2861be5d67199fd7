package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies chat payload variants.
type MessageType string

const (
	TypeChatMessage     MessageType = "chat_message"
	TypeAcknowledgement MessageType = "chat_acknowledgement"
	TypeErrorEvent      MessageType = "error_event"
)

// ContentType identifies the items carried by a chat message.
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentStartSession ContentType = "start-session"
	ContentEndSession   ContentType = "end-session"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

type ChatMessage struct {
	Type      MessageType `json:"type"`
	MsgID     string      `json:"msg_id"`
	Timestamp time.Time   `json:"timestamp"`
	Content   []Content   `json:"content"`
}

type ChatAcknowledgement struct {
	Type              MessageType `json:"type"`
	Timestamp         time.Time   `json:"timestamp"`
	AcknowledgedMsgID string      `json:"acknowledged_msg_id"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

// Text concatenates the text items in order; other items are ignored.
func (m ChatMessage) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func (m ChatMessage) EndsSession() bool {
	for _, c := range m.Content {
		if c.Type == ContentEndSession {
			return true
		}
	}
	return false
}

// NewTextMessage builds an outbound message with a fresh id. When endSession
// is set an end-session item follows the text.
func NewTextMessage(text string, endSession bool) ChatMessage {
	content := []Content{{Type: ContentText, Text: text}}
	if endSession {
		content = append(content, Content{Type: ContentEndSession})
	}
	return ChatMessage{
		Type:      TypeChatMessage,
		MsgID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
}

func NewAcknowledgement(msgID string) ChatAcknowledgement {
	return ChatAcknowledgement{
		Type:              TypeAcknowledgement,
		Timestamp:         time.Now().UTC(),
		AcknowledgedMsgID: msgID,
	}
}

func NewErrorEvent(code, detail string) ErrorEvent {
	return ErrorEvent{Type: TypeErrorEvent, Code: code, Detail: detail}
}

// ParseInbound decodes a counterpart payload into ChatMessage or
// ChatAcknowledgement. A chat message without an id gets one assigned so it
// can still be acknowledged.
func ParseInbound(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChatMessage:
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if len(msg.Content) == 0 {
			return nil, errors.New("invalid chat_message: no content")
		}
		if msg.MsgID == "" {
			msg.MsgID = uuid.NewString()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		return msg, nil
	case TypeAcknowledgement:
		var msg ChatAcknowledgement
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.AcknowledgedMsgID == "" {
			return nil, errors.New("invalid chat_acknowledgement")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
