package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/adapters/recognizer"
	"github.com/donnalabs/agentcore/domain/entities"
	"github.com/donnalabs/agentcore/domain/repositories"
	"github.com/donnalabs/agentcore/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected dashboard clients, fans conversation
// updates and voice events out to them, and routes their inbound traffic
// into the conversation service and the recognizer bridge.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	conversation *usecase.ConversationService
	bridge       *recognizer.Bridge
	validator    *MessageValidator

	logger *zap.Logger
}

var _ repositories.SpeechPlayback = (*Hub)(nil)

// NewHub creates a new WebSocket hub. bridge may be nil when voice capture
// is not wired.
func NewHub(
	conversation *usecase.ConversationService,
	bridge *recognizer.Bridge,
	logger *zap.Logger,
) *Hub {
	hub := &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		conversation: conversation,
		bridge:       bridge,
		validator:    NewMessageValidator(),
		logger:       logger,
	}

	conversation.Subscribe(func(message entities.ConversationMessage) {
		hub.broadcastJSON(CreateMessageUpdate(message))
	})

	return hub
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

// PublishVoiceState announces a voice activation state change to every
// connected client.
func (h *Hub) PublishVoiceState(state entities.ActivationState) {
	h.broadcastJSON(CreateVoiceStateMessage(state))
}

// Play implements speech playback by streaming the synthesized audio to
// every connected client as binary frames, bracketed by speaking markers.
func (h *Hub) Play(ctx context.Context, audio <-chan []byte) error {
	h.broadcastJSON(CreateSpeakingMessage(MessageTypeSpeakingStart))
	defer h.broadcastJSON(CreateSpeakingMessage(MessageTypeSpeakingEnd))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-audio:
			if !ok {
				return nil
			}
			h.broadcast(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
		}
	}
}

func (h *Hub) broadcastJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (h *Hub) broadcast(data WriteData) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping frame for slow client", zap.String("clientID", client.clientID))
		}
	}
}

type WriteData struct {
	// Type is the websocket message type.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Dashboard client ID for this connection
	clientID string

	// Logger
	logger *zap.Logger
}

// HandleWebSocket handles websocket requests from an authenticated
// dashboard client.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		clientID: clientID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one inbound JSON message.
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected inbound message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "message rejected", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *SendMessage:
		go c.handleSend(msg.Text)

	case *TranscriptMessage:
		if c.hub.bridge == nil {
			c.logger.Debug("Dropping transcript, voice capture not wired")
			return
		}
		c.hub.bridge.PushTranscript(repositories.TranscriptEvent{
			Text:  msg.Text,
			Final: msg.Final,
		})

	case *NewSessionMessage:
		go c.handleNewSession()

	case *ListeningEndMessage:
		if c.hub.bridge == nil {
			return
		}
		if msg.Reason == "no-speech" {
			c.hub.bridge.EndSession(repositories.ErrNoSpeech)
		} else {
			c.hub.bridge.EndSession(nil)
		}

	case *PingMessage:
		c.reply(CreatePongMessage(msg.Data))
	}
}

// processAudioChunk forwards raw microphone audio to the recognizer bridge.
func (c *Client) processAudioChunk(data []byte) {
	if c.hub.bridge == nil {
		c.logger.Warn("Received audio chunk but voice capture not wired",
			zap.String("clientID", c.clientID))
		return
	}
	c.hub.bridge.PushAudio(data)
}

func (c *Client) handleSend(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := c.hub.conversation.Send(ctx, text); err != nil {
		if errors.Is(err, entities.ErrResponseInFlight) {
			c.reply(CreateErrorMessage("response_in_flight", "a reply is still streaming", ""))
			return
		}
		c.logger.Error("Failed to send message",
			zap.String("clientID", c.clientID),
			zap.Error(err))
	}
}

func (c *Client) handleNewSession() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := c.hub.conversation.StartNewSession(ctx)
	c.hub.broadcastJSON(CreateSessionMessage(*session))
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping reply for slow client", zap.String("clientID", c.clientID))
	}
}
