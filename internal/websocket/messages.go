package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/donnalabs/agentcore/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Inbound from the dashboard
	MessageTypeSend         MessageType = "send"
	MessageTypeTranscript   MessageType = "transcript"
	MessageTypeNewSession   MessageType = "new_session"
	MessageTypeListeningEnd MessageType = "listening_end"
	MessageTypePing         MessageType = "ping"

	// Outbound to the dashboard
	MessageTypeMessageUpdate MessageType = "message_update"
	MessageTypeSession       MessageType = "session"
	MessageTypeVoiceState    MessageType = "voice_state"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// SendMessage carries one typed user message from the dashboard
type SendMessage struct {
	BaseMessage
	Text string `json:"text" validate:"required"`
}

// TranscriptMessage carries one browser-side recognition fragment
type TranscriptMessage struct {
	BaseMessage
	Text  string `json:"text" validate:"required"`
	Final bool   `json:"final"`
}

// NewSessionMessage asks for the conversation session to be replaced
type NewSessionMessage struct {
	BaseMessage
}

// ListeningEndMessage signals the end of a microphone capture
type ListeningEndMessage struct {
	BaseMessage
	Reason string `json:"reason,omitempty"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// MessageUpdateMessage publishes one conversation message snapshot
type MessageUpdateMessage struct {
	BaseMessage
	Message entities.ConversationMessage `json:"message"`
}

// SessionMessage announces the current conversation session
type SessionMessage struct {
	BaseMessage
	Session entities.Session `json:"session"`
}

// VoiceStateMessage announces a voice activation state change
type VoiceStateMessage struct {
	BaseMessage
	State entities.ActivationState `json:"state"`
}

// SpeakingMessage frames a run of binary audio chunks
type SpeakingMessage struct {
	BaseMessage
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message and returns its typed form.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSend:
		var msg SendMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid send message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeTranscript:
		var msg TranscriptMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcript message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeNewSession:
		var msg NewSessionMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid new session message: %w", err)
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening end message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateMessageUpdate creates an update for one conversation message
func CreateMessageUpdate(message entities.ConversationMessage) *MessageUpdateMessage {
	return &MessageUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeMessageUpdate,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Message: message,
	}
}

// CreateSessionMessage creates a session announcement
func CreateSessionMessage(session entities.Session) *SessionMessage {
	return &SessionMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSession,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Session: session,
	}
}

// CreateVoiceStateMessage creates a voice activation state announcement
func CreateVoiceStateMessage(state entities.ActivationState) *VoiceStateMessage {
	return &VoiceStateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeVoiceState,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		State: state,
	}
}

// CreateSpeakingMessage frames the start or end of an audio playback run
func CreateSpeakingMessage(messageType MessageType) *SpeakingMessage {
	return &SpeakingMessage{
		BaseMessage: BaseMessage{
			Type:      messageType,
			Timestamp: time.Now().Format(time.RFC3339),
		},
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}
