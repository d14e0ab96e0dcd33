package agent

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/donnalabs/agentcore/domain/repositories"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultGeminiMaxTokens = 1024
)

// geminiSystemPrompt frames the model as the inventory assistant so direct
// deployments answer in the same register as the hosted agent.
const geminiSystemPrompt = "You are Donna, an inventory management assistant. " +
	"Answer questions about stock levels, sales, warehouses, billing and " +
	"stock movements concisely and helpfully."

// GeminiConfig holds configuration for the direct Gemini backend.
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: the model to use (default: "gemini-2.0-flash")
// - MaxOutputTokens: reply length cap (default: 1024)
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
}

// ValidateGeminiConfig validates the GeminiConfig.
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	return nil
}

// GeminiAgent implements the AgentService contract directly against the
// Gemini API, for deployments that run without the hosted agent service.
// Session identifiers are generated locally and scope an in-memory history.
type GeminiAgent struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	maxOutputTokens int

	mu        sync.Mutex
	histories map[string][]*genai.Content
}

var _ repositories.AgentService = (*GeminiAgent)(nil)

// NewGeminiAgent creates a new direct Gemini backend.
func NewGeminiAgent(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiAgent, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultGeminiMaxTokens
	}

	return &GeminiAgent{
		client:          client,
		logger:          logger,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		histories:       make(map[string][]*genai.Content),
	}, nil
}

// CreateSession allocates a new local history.
func (g *GeminiAgent) CreateSession(ctx context.Context) (string, error) {
	id := uuid.New().String()

	g.mu.Lock()
	g.histories[id] = nil
	g.mu.Unlock()

	g.logger.Info("Gemini session created", zap.String("sessionID", id))
	return id, nil
}

// StreamMessage sends content under the session's history and streams the
// reply back delta by delta.
func (g *GeminiAgent) StreamMessage(ctx context.Context, sessionID string, content string) (repositories.DeltaStream, error) {
	userContent := genai.NewContentFromText(content, genai.RoleUser)

	g.mu.Lock()
	history := g.histories[sessionID]
	g.mu.Unlock()

	contents := make([]*genai.Content, 0, len(history)+2)
	contents = append(contents, genai.NewContentFromText(geminiSystemPrompt, genai.RoleUser))
	contents = append(contents, history...)
	contents = append(contents, userContent)

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	deltas := make(chan geminiDelta, 10)
	go func() {
		defer close(deltas)

		var replyText string
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				g.logger.Error("Gemini stream failed", zap.Error(err))
				deltas <- geminiDelta{err: err}
				return
			}

			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			var text string
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					text += part.Text
				}
			}
			if text == "" {
				continue
			}

			replyText += text
			select {
			case deltas <- geminiDelta{text: text}:
			case <-ctx.Done():
				return
			}
		}

		if replyText != "" {
			replyContent := genai.NewContentFromText(replyText, genai.RoleModel)
			g.mu.Lock()
			g.histories[sessionID] = append(g.histories[sessionID], userContent, replyContent)
			g.mu.Unlock()
		}
	}()

	return &geminiStream{deltas: deltas}, nil
}

type geminiDelta struct {
	text string
	err  error
}

// geminiStream adapts the push-based genai iterator to the pull-based
// DeltaStream contract.
type geminiStream struct {
	deltas <-chan geminiDelta
}

var _ repositories.DeltaStream = (*geminiStream)(nil)

func (s *geminiStream) Recv() (string, error) {
	delta, ok := <-s.deltas
	if !ok {
		return "", io.EOF
	}
	if delta.err != nil {
		return "", delta.err
	}
	return delta.text, nil
}

func (s *geminiStream) Close() error {
	// Drain so the producer goroutine can finish.
	for range s.deltas {
	}
	return nil
}
