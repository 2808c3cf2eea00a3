package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kmishra1204/OneDialAI-UAT/models"
	"github.com/kmishra1204/OneDialAI-UAT/services"
)

const testSignature = "valid-signature"

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	agents   map[string]*models.Agent
	created  []*models.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*models.Session),
		agents:   make(map[string]*models.Agent),
	}
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) GetAgent(_ context.Context, agentID string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agent, ok := f.agents[agentID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return agent, nil
}

func (f *fakeStore) CreateSession(_ context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.SessionID] = session
	f.created = append(f.created, session)
	return nil
}

func (f *fakeStore) StartSession(_ context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, services.ErrNotFound
	}
	switch session.Status {
	case models.StatusActive, models.StatusProcessing, models.StatusCompleted, models.StatusCancelled:
		return nil, services.ErrNotFound
	}
	now := time.Now()
	session.Status = models.StatusActive
	session.StartedAt = &now
	session.UpdatedAt = now
	return session, nil
}

func (f *fakeStore) EndSession(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return false, services.ErrNotFound
	}
	if session.Status != models.StatusActive {
		return false, nil
	}
	now := time.Now()
	session.Status = models.StatusProcessing
	session.EndedAt = &now
	session.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) AttachTranscript(_ context.Context, sessionID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return services.ErrNotFound
	}
	session.TranscriptURL = url
	return nil
}

func (f *fakeStore) AttachRecording(_ context.Context, sessionID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return services.ErrNotFound
	}
	session.RecordingURL = url
	return nil
}

type fakeBridge struct {
	mu           sync.Mutex
	opened       []string
	ended        []string
	instructions []string
	openErr      error
}

type fakeBridgeHandle struct {
	bridge *fakeBridge
}

func (f *fakeBridge) OpenBridge(_ context.Context, sessionID string) (services.BridgeHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, sessionID)
	return &fakeBridgeHandle{bridge: f}, nil
}

func (h *fakeBridgeHandle) UpdateInstructions(_ context.Context, instructions string) error {
	h.bridge.mu.Lock()
	defer h.bridge.mu.Unlock()
	h.bridge.instructions = append(h.bridge.instructions, instructions)
	return nil
}

func (f *fakeBridge) EndBridge(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return nil
}

type fakeChat struct {
	mu         sync.Mutex
	history    []models.ChatMessage
	ops        []string
	sent       []string
	identities []models.Identity
	fetches    int
}

func (f *fakeChat) VerifySignature(_ []byte, signature string) bool {
	return signature == testSignature
}

func (f *fakeChat) UpsertIdentity(_ context.Context, identity models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "upsert")
	f.identities = append(f.identities, identity)
	return nil
}

func (f *fakeChat) SendMessage(_ context.Context, _, _, text string, _ models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "send")
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChat) FetchHistory(_ context.Context, _, _ string, _ int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.history, nil
}

type fakeJob struct {
	name    string
	payload map[string]interface{}
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []fakeJob
	err  error
}

func (f *fakeJobs) Enqueue(_ context.Context, name string, payload map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, fakeJob{name: name, payload: payload})
	return nil
}

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	requests []openai.ChatCompletionRequest
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

type testEnv struct {
	app    *App
	store  *fakeStore
	bridge *fakeBridge
	chat   *fakeChat
	jobs   *fakeJobs
	llm    *fakeLLM
	router *gin.Engine
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:  newFakeStore(),
		bridge: &fakeBridge{},
		chat:   &fakeChat{},
		jobs:   &fakeJobs{},
		llm:    &fakeLLM{reply: "Here is what I can tell you."},
	}

	cfg := &Config{
		Model:          "gpt-4o-mini",
		Temperature:    0.7,
		MaxTokens:      400,
		DedupeTTL:      time.Minute,
		PolicyWrapper:  defaultPolicyWrapper,
		BridgeAudioURL: "wss://bridge.test/audio-websocket",
	}

	env.app = &App{
		cfg:    cfg,
		store:  env.store,
		bridge: env.bridge,
		chat:   env.chat,
		jobs:   env.jobs,
		llm:    env.llm,
		dedupe: services.NewDedupeCache(cfg.DedupeTTL),
		hub:    services.NewWebSocketHub(),
	}

	env.router = gin.New()
	env.app.registerRoutes(env.router)

	return env
}

func (e *testEnv) postWebhook(t *testing.T, payload interface{}, signature, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	var body []byte
	switch p := payload.(type) {
	case string:
		body = []byte(p)
	case []byte:
		body = p
	default:
		var err error
		body, err = json.Marshal(p)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return got
}
