// Package history models the conversation transcript that the context
// management pipeline operates on: ordered messages with typed content
// parts, tool calls, and the pairing rules that tie a tool call to its
// result.
package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// PartType discriminates content parts on the wire.
type PartType string

// Content part types.
const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image"
	PartTypeData  PartType = "data"
)

// AbortedResultText is the body of a synthetic tool result inserted for a
// call whose real result never arrived.
const AbortedResultText = "aborted"

// Part is a single unit of message content. Messages hold an ordered list
// of parts; only text parts participate in token estimation and truncation.
type Part interface {
	Type() PartType
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

// Type implements Part.
func (TextPart) Type() PartType { return PartTypeText }

// ImagePart is inline image content. The engine never inspects the bytes;
// it only carries them through.
type ImagePart struct {
	MIME string
	Data []byte
}

// Type implements Part.
func (ImagePart) Type() PartType { return PartTypeImage }

// DataPart is opaque binary content attached to a message.
type DataPart struct {
	MIME string
	Data []byte
}

// Type implements Part.
func (DataPart) Type() PartType { return PartTypeData }

// ToolCall is a tool invocation issued by an assistant message. Arguments
// is the raw JSON argument payload as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a conversation.
//
// A tool message carries the result for exactly one earlier assistant tool
// call, referenced by ToolCallID. Synthetic marks results the normalizer
// fabricated to close an unanswered call.
type Message struct {
	ID         string
	Role       Role
	Name       string
	Parts      []Part
	ToolCalls  []ToolCall
	ToolCallID string
	Synthetic  bool
}

// NewSystemMessage returns a system message with a single text part.
func NewSystemMessage(text string) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  System,
		Parts: []Part{TextPart{Text: text}},
	}
}

// NewUserMessage returns a user message with a single text part.
func NewUserMessage(text string) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  User,
		Parts: []Part{TextPart{Text: text}},
	}
}

// NewAssistantMessage returns an assistant message with optional text and
// tool calls. An empty text produces a message with no parts.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      Assistant,
		ToolCalls: calls,
	}
	if text != "" {
		msg.Parts = []Part{TextPart{Text: text}}
	}
	return msg
}

// NewToolResult returns a tool message answering the given call ID.
func NewToolResult(callID, name, text string) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       Tool,
		Name:       name,
		ToolCallID: callID,
		Parts:      []Part{TextPart{Text: text}},
	}
}

// newAbortedResult fabricates a result for a call that was never answered.
func newAbortedResult(call ToolCall) Message {
	msg := NewToolResult(call.ID, call.Name, AbortedResultText)
	msg.Synthetic = true
	return msg
}

// Text returns the message's text parts joined with newlines.
func (m Message) Text() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		tp, ok := part.(TextPart)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(tp.Text)
	}
	return sb.String()
}

// SetText replaces every text part with a single text part holding the
// given content, keeping non-text parts in their original order.
func (m *Message) SetText(text string) {
	parts := make([]Part, 0, len(m.Parts)+1)
	replaced := false
	for _, part := range m.Parts {
		if part.Type() == PartTypeText {
			if !replaced {
				parts = append(parts, TextPart{Text: text})
				replaced = true
			}
			continue
		}
		parts = append(parts, part)
	}
	if !replaced {
		parts = append(parts, TextPart{Text: text})
	}
	m.Parts = parts
}

// Clone returns a copy whose part and tool call slices are independent of
// the receiver's. Part payloads are shared; callers replace parts rather
// than mutate them.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		copy(out.Parts, m.Parts)
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

// partEnvelope is the wire form of a Part.
type partEnvelope struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
	MIME string   `json:"mime,omitempty"`
	Data []byte   `json:"data,omitempty"`
}

// messageEnvelope is the wire form of a Message.
type messageEnvelope struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Name       string         `json:"name,omitempty"`
	Parts      []partEnvelope `json:"parts,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Synthetic  bool           `json:"synthetic,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{
		ID:         m.ID,
		Role:       m.Role,
		Name:       m.Name,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Synthetic:  m.Synthetic,
	}
	for _, part := range m.Parts {
		switch p := part.(type) {
		case TextPart:
			env.Parts = append(env.Parts, partEnvelope{Type: PartTypeText, Text: p.Text})
		case ImagePart:
			env.Parts = append(env.Parts, partEnvelope{Type: PartTypeImage, MIME: p.MIME, Data: p.Data})
		case DataPart:
			env.Parts = append(env.Parts, partEnvelope{Type: PartTypeData, MIME: p.MIME, Data: p.Data})
		default:
			return nil, fmt.Errorf("marshaling message %s: unknown part type %T", m.ID, part)
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshaling message: %w", err)
	}
	*m = Message{
		ID:         env.ID,
		Role:       env.Role,
		Name:       env.Name,
		ToolCalls:  env.ToolCalls,
		ToolCallID: env.ToolCallID,
		Synthetic:  env.Synthetic,
	}
	for _, part := range env.Parts {
		switch part.Type {
		case PartTypeText:
			m.Parts = append(m.Parts, TextPart{Text: part.Text})
		case PartTypeImage:
			m.Parts = append(m.Parts, ImagePart{MIME: part.MIME, Data: part.Data})
		case PartTypeData:
			m.Parts = append(m.Parts, DataPart{MIME: part.MIME, Data: part.Data})
		default:
			return fmt.Errorf("unmarshaling message %s: unknown part type %q", env.ID, part.Type)
		}
	}
	return nil
}
