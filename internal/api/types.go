package api

import (
	"time"

	"github.com/donnalabs/agentcore/domain/entities"
)

// DashboardAuthRequest represents the request payload for dashboard authentication
type DashboardAuthRequest struct {
	ClientID string `json:"client_id"`
}

// DashboardAuthResponse represents the response payload for dashboard authentication
type DashboardAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// SendMessageRequest represents one typed user message
type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// SessionResponse announces the current conversation session
type SessionResponse struct {
	Session *entities.Session `json:"session"`
}

// ConversationResponse carries the transcript snapshot
type ConversationResponse struct {
	Messages []entities.ConversationMessage `json:"messages"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
