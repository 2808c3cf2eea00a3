package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kmishra1204/OneDialAI-UAT/models"
	"github.com/kmishra1204/OneDialAI-UAT/services"
)

// SessionStore persists sessions and agents. Status-mutating writes are
// conditional on the expected prior status so duplicate event deliveries
// converge to a single transition.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetAgent(ctx context.Context, agentID string) (*models.Agent, error)
	CreateSession(ctx context.Context, session *models.Session) error
	StartSession(ctx context.Context, sessionID string) (*models.Session, error)
	EndSession(ctx context.Context, sessionID string) (bool, error)
	AttachTranscript(ctx context.Context, sessionID, url string) error
	AttachRecording(ctx context.Context, sessionID, url string) error
}

// BridgeProvider opens and ends realtime AI bridges for live sessions
type BridgeProvider interface {
	OpenBridge(ctx context.Context, sessionID string) (services.BridgeHandle, error)
	EndBridge(ctx context.Context, sessionID string) error
}

// ChatPlatform is the chat transport: webhook signature verification, channel
// history, and message delivery under an agent identity
type ChatPlatform interface {
	VerifySignature(body []byte, signature string) bool
	UpsertIdentity(ctx context.Context, identity models.Identity) error
	SendMessage(ctx context.Context, channelType, channelID, text string, identity models.Identity) error
	FetchHistory(ctx context.Context, channelType, channelID string, limit int) ([]models.ChatMessage, error)
}

// JobEnqueuer hands jobs to the background workflow engine
type JobEnqueuer interface {
	Enqueue(ctx context.Context, name string, payload map[string]interface{}) error
}

// CompletionClient issues chat completion requests
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// App wires the webhook handlers to their collaborators
type App struct {
	cfg    *Config
	store  SessionStore
	bridge BridgeProvider
	chat   ChatPlatform
	jobs   JobEnqueuer
	llm    CompletionClient
	dedupe *services.DedupeCache
	hub    *services.WebSocketHub
}

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: cannot retrieve env file, using environment variables")
	}

	cfg := LoadConfig()

	firestoreClient, err := services.InitFirestore()
	if err != nil {
		log.Fatalf("Failed to initialize Firestore: %v", err)
	}
	defer firestoreClient.Close()
	log.Println("Firestore initialized successfully")

	app := &App{
		cfg:    cfg,
		store:  firestoreClient,
		bridge: services.NewBridgeClient(cfg.BridgeAPIURL, cfg.BridgeAPIKey),
		chat:   services.NewChatClient(cfg.ChatAPIURL, cfg.ChatAPIKey, cfg.ChatAPISecret),
		jobs:   services.NewWorkflowClient(cfg.WorkflowURL, cfg.WorkflowAPIKey),
		llm:    openai.NewClient(cfg.OpenAIKey),
		dedupe: services.NewDedupeCache(cfg.DedupeTTL),
		hub:    services.GetWebSocketHub(),
	}

	router := gin.Default()
	app.registerRoutes(router)
	router.Run(":" + cfg.Port)
}

func (a *App) registerRoutes(router *gin.Engine) {
	router.POST("/webhook", a.WebhookHandler)
	router.POST("/twilio-dial/:agent_id", a.TwilioDialHandler)
	router.GET("/ws/sessions/:session_id", a.SessionFeedHandler)
}
