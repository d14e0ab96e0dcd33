package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/domain/repositories"
)

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultAppName        = "enterprise_inventory_agent"
	defaultUserID         = "user"
	defaultVoice          = "en-US-AriaNeural"
	defaultAudioChunkSize = 1024
	defaultTimeout        = 60 * time.Second
)

// Config holds configuration for the agent service client.
// Required fields: none, every field has a development default.
// Optional fields:
// - BaseURL: root of the agent service (default: "http://localhost:8000")
// - AppName: agent application name used in session paths
// - UserID: user segment of session paths
// - Voice: synthesis voice name
// - AudioChunkSize: size of synthesized audio chunks to stream
// - Timeout: per-request timeout covering the whole response stream
type Config struct {
	BaseURL        string
	AppName        string
	UserID         string
	Voice          string
	AudioChunkSize int
	Timeout        time.Duration
}

// NewConfigFromEnv builds a Config from environment variables, leaving
// unset values to their defaults.
func NewConfigFromEnv() Config {
	return Config{
		BaseURL: os.Getenv("AGENT_BASE_URL"),
		AppName: os.Getenv("AGENT_APP_NAME"),
		UserID:  os.Getenv("AGENT_USER_ID"),
		Voice:   os.Getenv("AGENT_VOICE"),
	}
}

// ValidateConfig validates the Config.
func ValidateConfig(config Config) error {
	if config.AudioChunkSize < 0 {
		return fmt.Errorf("audio chunk size must be positive, got %d", config.AudioChunkSize)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// Client talks to the remote agent service: session creation, message send
// with a chunked streaming reply, and speech synthesis.
type Client struct {
	baseURL        string
	appName        string
	userID         string
	voice          string
	audioChunkSize int
	httpClient     *http.Client
	logger         *zap.Logger
}

var (
	_ repositories.AgentService      = (*Client)(nil)
	_ repositories.SpeechSynthesizer = (*Client)(nil)
)

// NewClient creates a new agent service client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Info("Using default agent base URL", zap.String("baseURL", baseURL))
	}

	appName := config.AppName
	if appName == "" {
		appName = defaultAppName
	}

	userID := config.UserID
	if userID == "" {
		userID = defaultUserID
	}

	voice := config.Voice
	if voice == "" {
		voice = defaultVoice
	}

	chunkSize := config.AudioChunkSize
	if chunkSize == 0 {
		chunkSize = defaultAudioChunkSize
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:        baseURL,
		appName:        appName,
		userID:         userID,
		voice:          voice,
		audioChunkSize: chunkSize,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}, nil
}

// sessionResponse is the body of a successful session-creation call.
type sessionResponse struct {
	ID string `json:"id"`
}

// CreateSession asks the service for a new session identifier.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/apps/%s/users/%s/sessions", c.baseURL, c.appName, c.userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repositories.ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("session creation returned status %d: %s", resp.StatusCode, string(body))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.ID == "" {
		return "", fmt.Errorf("session creation returned an empty identifier")
	}

	c.logger.Info("Agent session created", zap.String("sessionID", session.ID))
	return session.ID, nil
}

// sendRequest is the payload of the message-send endpoint.
type sendRequest struct {
	AppName    string      `json:"appName"`
	UserID     string      `json:"userId"`
	SessionID  string      `json:"sessionId"`
	NewMessage sendMessage `json:"newMessage"`
	Streaming  bool        `json:"streaming"`
}

type sendMessage struct {
	Role  string     `json:"role"`
	Parts []sendPart `json:"parts"`
}

type sendPart struct {
	Text string `json:"text"`
}

// StreamMessage sends one user message and returns the chunked reply.
func (c *Client) StreamMessage(ctx context.Context, sessionID string, content string) (repositories.DeltaStream, error) {
	payload := sendRequest{
		AppName:   c.appName,
		UserID:    c.userID,
		SessionID: sessionID,
		NewMessage: sendMessage{
			Role:  "user",
			Parts: []sendPart{{Text: strings.TrimSpace(content)}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := c.baseURL + "/run_sse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrAgentUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(errBody))
	}

	c.logger.Debug("Agent reply stream opened", zap.String("sessionID", sessionID))
	return NewDeltaStream(resp.Body, c.logger), nil
}

// synthesizeResponse carries either an audio resource reference or inline
// audio data, depending on the service deployment.
type synthesizeResponse struct {
	AudioFile   string `json:"audio_file"`
	AudioBase64 string `json:"audio_base64"`
}

// Synthesize converts reply text to speech through the agent service and
// streams the audio back in chunks.
func (c *Client) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	body, err := json.Marshal(map[string]string{
		"text":  text,
		"voice": c.voice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis returned status %d: %s", resp.StatusCode, string(errBody))
	}

	var synth synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&synth); err != nil {
		return nil, fmt.Errorf("failed to decode synthesize response: %w", err)
	}

	switch {
	case synth.AudioBase64 != "":
		audio, err := base64.StdEncoding.DecodeString(synth.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline audio: %w", err)
		}
		return c.streamBytes(audio), nil

	case synth.AudioFile != "":
		return c.streamAudioFile(ctx, synth.AudioFile)

	default:
		return nil, fmt.Errorf("synthesis returned neither audio data nor a resource reference")
	}
}

// streamAudioFile fetches a synthesized audio resource and streams it.
func (c *Client) streamAudioFile(ctx context.Context, path string) (<-chan []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrAgentUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
	}

	audioChan := make(chan []byte, 10)
	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		buffer := make([]byte, c.audioChunkSize)
		totalBytes := 0
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				totalBytes += n

				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				c.logger.Debug("Audio stream finished", zap.Int("totalBytes", totalBytes))
				return
			}
			if err != nil {
				c.logger.Error("Failed to read audio stream", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}

// streamBytes chunks an in-memory audio buffer onto a channel.
func (c *Client) streamBytes(audio []byte) <-chan []byte {
	audioChan := make(chan []byte, 10)
	go func() {
		defer close(audioChan)
		for start := 0; start < len(audio); start += c.audioChunkSize {
			end := start + c.audioChunkSize
			if end > len(audio) {
				end = len(audio)
			}
			audioChan <- audio[start:end]
		}
	}()
	return audioChan
}
