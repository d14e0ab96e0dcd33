package entities

import (
	"errors"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ErrResponseInFlight is returned when a new turn is started while the
// previous assistant reply is still streaming.
var ErrResponseInFlight = errors.New("assistant response still streaming")

// ConversationMessage is one entry of the transcript. User and system
// messages are born complete. Assistant messages start empty and are
// rewritten with the full accumulated text after every delta until the
// stream ends; after that they are never touched again.
type ConversationMessage struct {
	ID       string      `json:"id"`
	Role     MessageRole `json:"role"`
	Content  string      `json:"content"`
	Complete bool        `json:"complete"`
}

// NewUserMessage creates a completed user message.
func NewUserMessage(content string) *ConversationMessage {
	return &ConversationMessage{
		ID:       uuid.New().String(),
		Role:     MessageRoleUser,
		Content:  content,
		Complete: true,
	}
}

// NewSystemMessage creates a completed system message. System messages are
// the only channel for user-visible status and errors.
func NewSystemMessage(content string) *ConversationMessage {
	return &ConversationMessage{
		ID:       uuid.New().String(),
		Role:     MessageRoleSystem,
		Content:  content,
		Complete: true,
	}
}

// NewAssistantPlaceholder creates the empty, incomplete assistant message
// that the response accumulator fills in during a turn.
func NewAssistantPlaceholder() *ConversationMessage {
	return &ConversationMessage{
		ID:   uuid.New().String(),
		Role: MessageRoleAssistant,
	}
}

// ReplaceContent swaps in the full accumulated text so far. Observers always
// see the whole running text, never a bare delta. No-op once complete.
func (m *ConversationMessage) ReplaceContent(text string) {
	if m.Complete {
		return
	}
	m.Content = text
}

// Finalize marks the message complete, optionally replacing the content one
// last time (used for the error-string finalization path). This is always
// the last mutation of an assistant message.
func (m *ConversationMessage) Finalize(text string) {
	if m.Complete {
		return
	}
	if text != "" {
		m.Content = text
	}
	m.Complete = true
}

// Conversation is the ordered transcript of one page load. It owns the
// single-incomplete-message invariant: a turn cannot start while a previous
// assistant reply is still streaming.
type Conversation struct {
	messages []*ConversationMessage
}

// NewConversation creates an empty transcript.
func NewConversation() *Conversation {
	return &Conversation{messages: make([]*ConversationMessage, 0)}
}

// Append adds a completed message to the transcript.
func (c *Conversation) Append(msg *ConversationMessage) {
	c.messages = append(c.messages, msg)
}

// InFlight reports whether an assistant reply is currently streaming.
func (c *Conversation) InFlight() bool {
	for _, m := range c.messages {
		if m.Role == MessageRoleAssistant && !m.Complete {
			return true
		}
	}
	return false
}

// BeginTurn appends the user message followed by the assistant placeholder
// for the same turn, in that order, so observers never see a reply without
// its preceding user message. It rejects the turn while a previous reply is
// incomplete.
func (c *Conversation) BeginTurn(userText string) (*ConversationMessage, *ConversationMessage, error) {
	if c.InFlight() {
		return nil, nil, ErrResponseInFlight
	}
	user := NewUserMessage(userText)
	assistant := NewAssistantPlaceholder()
	c.messages = append(c.messages, user, assistant)
	return user, assistant, nil
}

// Messages returns a copy of the transcript in order.
func (c *Conversation) Messages() []ConversationMessage {
	out := make([]ConversationMessage, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of transcript entries.
func (c *Conversation) Len() int {
	return len(c.messages)
}
