package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/donnalabs/agentcore/adapters/agent"
	"github.com/donnalabs/agentcore/adapters/recognizer"
	"github.com/donnalabs/agentcore/domain/repositories"
	"github.com/donnalabs/agentcore/internal/api"
	"github.com/donnalabs/agentcore/internal/websocket"
	"github.com/donnalabs/agentcore/usecase"
)

func main() {
	// Load environment variables from .env when present. A missing file
	// is expected outside development.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize the agent adapter. The HTTP client always exists for
	// speech synthesis; it also serves the conversation unless the Gemini
	// backend is selected.
	client, err := agent.NewClient(agent.NewConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize agent client", zap.Error(err))
	}

	var agentService repositories.AgentService = client
	if os.Getenv("AGENT_BACKEND") == "gemini" {
		gemini, err := agent.NewGeminiAgent(ctx, agent.GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini backend", zap.Error(err))
		}
		agentService = gemini
		logger.Info("Using Gemini backend")
	}

	// Optional server-side speech recognition
	var google *recognizer.GoogleRecognizer
	if os.Getenv("SPEECH_BACKEND") == "google" {
		google, err = recognizer.NewGoogleRecognizer(recognizer.NewGoogleConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize speech recognizer", zap.Error(err))
		}
		logger.Info("Using Google Cloud speech recognition")
	}
	bridge := recognizer.NewBridge(google, logger)

	// The voice loop listens to the bridge by default. The mock backend
	// replaces it with a scripted utterance, for demoing the pipeline
	// without a microphone or a speech service.
	var speech repositories.SpeechRecognizer = bridge
	if os.Getenv("SPEECH_BACKEND") == "mock" {
		speech = recognizer.NewMockRecognizer([]repositories.TranscriptEvent{
			{Text: "hey donna", Final: false},
			{Text: "hey donna, check stock levels", Final: true},
		}, logger)
		logger.Info("Using mock speech recognition")
	}

	// Initialize usecase services
	sessions := usecase.NewSessionManager(agentService, logger)
	degraded := usecase.NewDegradedResponder(0, logger)
	conversation := usecase.NewConversationService(sessions, agentService, degraded, logger)

	// Initialize WebSocket hub with conversation service
	hub := websocket.NewHub(conversation, bridge, logger)
	go hub.Run()

	// Voice activation loop
	voice := usecase.NewVoiceMachine(speech, conversation, client, hub, usecase.VoiceMachineConfig{}, logger)
	voice.SetStateListener(hub.PublishVoiceState)
	go func() {
		if err := voice.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Voice activation stopped", zap.Error(err))
		}
	}()

	// Initialize API routes
	api.InitRoutes(e, hub, conversation, sessions, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
