package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/internal/auth"
	"github.com/donnalabs/agentcore/internal/websocket"
	"github.com/donnalabs/agentcore/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	conversation *usecase.ConversationService,
	sessions *usecase.SessionManager,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "donna-agentcore",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/dashboard", func(c echo.Context) error {
		return dashboardAuth(c, logger)
	})

	v1.GET("/session", func(c echo.Context) error {
		return getSession(c, sessions)
	})
	v1.POST("/session", func(c echo.Context) error {
		return createSession(c, conversation)
	})

	v1.GET("/conversations", func(c echo.Context) error {
		return getConversations(c, conversation)
	})

	v1.POST("/agent/messages", func(c echo.Context) error {
		return sendMessage(c, conversation, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// dashboardAuth issues a JWT for a dashboard client. Clients without a
// stable identity get a generated one.
func dashboardAuth(c echo.Context, logger *zap.Logger) error {
	var req DashboardAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind dashboard auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	token, err := auth.GenerateDashboardToken(clientID)
	if err != nil {
		logger.Error("Failed to generate dashboard token",
			zap.String("client_id", clientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, DashboardAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  clientID,
	})
}

func getSession(c echo.Context, sessions *usecase.SessionManager) error {
	session := sessions.EnsureSession(c.Request().Context())
	return c.JSON(http.StatusOK, SessionResponse{Session: session})
}

func createSession(c echo.Context, conversation *usecase.ConversationService) error {
	session := conversation.StartNewSession(c.Request().Context())
	return c.JSON(http.StatusCreated, SessionResponse{Session: session})
}

func getConversations(c echo.Context, conversation *usecase.ConversationService) error {
	return c.JSON(http.StatusOK, ConversationResponse{
		Messages: conversation.Messages(),
	})
}

// sendMessage submits one user message and streams every update of the
// resulting assistant message back as server-sent events.
func sendMessage(c echo.Context, conversation *usecase.ConversationService, logger *zap.Logger) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Text is required",
		})
	}

	if conversation.InFlight() {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "response_in_flight",
			Message: "A reply is still streaming",
		})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	// Updates are scoped to this turn's user and assistant pair, so a
	// concurrent voice-command turn never interleaves into this client's
	// event stream.
	updates := make(chan entities.ConversationMessage, 64)
	done := make(chan error, 1)
	go func() {
		_, err := conversation.SendWithUpdates(c.Request().Context(), req.Text,
			func(message entities.ConversationMessage) {
				select {
				case updates <- message:
				default:
				}
			})
		done <- err
	}()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil

		case message := <-updates:
			writeEvent(resp, message)

		case err := <-done:
			// Flush updates published before Send returned.
			for {
				select {
				case message := <-updates:
					writeEvent(resp, message)
					continue
				default:
				}
				break
			}
			if err != nil && !errors.Is(err, entities.ErrResponseInFlight) {
				logger.Error("Message send failed", zap.Error(err))
			}
			fmt.Fprint(resp, "data: [DONE]\n\n")
			resp.Flush()
			return nil
		}
	}
}

func writeEvent(resp *echo.Response, message entities.ConversationMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}
	fmt.Fprintf(resp, "data: %s\n\n", payload)
	resp.Flush()
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Browsers cannot set headers on websocket upgrades, so the token is
	// accepted from the query string as well.
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "dashboard" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only dashboard tokens are allowed for WebSocket connections",
		})
	}

	clientID := claims.ClientID
	if clientID == "" {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("client_id", clientID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocket(hub, c, clientID, logger)
}
