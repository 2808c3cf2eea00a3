package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kmishra1204/OneDialAI-UAT/models"
	"github.com/kmishra1204/OneDialAI-UAT/services"
)

// WebhookHandler is the single platform event entry point. It verifies the
// request, parses the envelope, and routes by event kind. Unrecognized kinds
// are accepted and ignored so the platform can add events without breaking
// this deployment.
func (a *App) WebhookHandler(c *gin.Context) {
	signature := c.GetHeader("X-Signature")
	apiKey := c.GetHeader("X-Api-Key")

	// The API key is only checked for presence, it is not compared against a
	// stored secret. Authenticity rests on the body signature.
	if signature == "" || apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth headers"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	if !a.chat.VerifySignature(body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	switch event.Type {
	case models.EventSessionStarted:
		a.handleSessionStarted(c, &event)
	case models.EventParticipantLeft:
		a.handleParticipantLeft(c, &event)
	case models.EventSessionEnded:
		a.handleSessionEnded(c, &event)
	case models.EventTranscriptReady:
		a.handleTranscriptReady(c, &event)
	case models.EventRecordingReady:
		a.handleRecordingReady(c, &event)
	case models.EventMessageNew:
		a.handleChatMessage(c, &event)
	default:
		log.Printf("Ignoring unhandled event kind: %s", event.Type)
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
	}
}

func (a *App) handleSessionStarted(c *gin.Context, event *models.WebhookEvent) {
	sessionID := event.SessionID()
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session identifier"})
		return
	}

	ctx := c.Request.Context()
	session, err := a.store.StartSession(ctx, sessionID)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		log.Printf("Error starting session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	a.broadcastStatus(session.SessionID, session.AgentID, models.StatusActive)

	if err := a.activateSession(ctx, session); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
			return
		}
		// The status transition already happened; a bridge failure must not
		// fail the delivery.
		log.Printf("Error activating session %s: %v", sessionID, err)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// activateSession injects the AI participant into a freshly started call:
// it opens the realtime bridge and pushes the assembled agent instructions
// into its live configuration.
func (a *App) activateSession(ctx context.Context, session *models.Session) error {
	agent, err := a.store.GetAgent(ctx, session.AgentID)
	if err != nil {
		return err
	}

	handle, err := a.bridge.OpenBridge(ctx, session.SessionID)
	if err != nil {
		return err
	}

	instructions := buildBridgeInstructions(a.cfg.PolicyWrapper, agent.Instructions)
	if instructions == "" {
		return nil
	}
	return handle.UpdateInstructions(ctx, instructions)
}

func (a *App) handleParticipantLeft(c *gin.Context, event *models.WebhookEvent) {
	sessionID := event.SessionID()
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session identifier"})
		return
	}

	if err := a.bridge.EndBridge(c.Request.Context(), sessionID); err != nil {
		log.Printf("Error ending bridge for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) handleSessionEnded(c *gin.Context, event *models.WebhookEvent) {
	sessionID := event.SessionID()
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session identifier"})
		return
	}

	transitioned, err := a.store.EndSession(c.Request.Context(), sessionID)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		log.Printf("Error ending session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if transitioned {
		a.broadcastStatus(sessionID, "", models.StatusProcessing)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) handleTranscriptReady(c *gin.Context, event *models.WebhookEvent) {
	sessionID := event.SessionID()
	if sessionID == "" || event.CallTranscription == nil || event.CallTranscription.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing transcript reference"})
		return
	}

	ctx := c.Request.Context()
	url := event.CallTranscription.URL

	err := a.store.AttachTranscript(ctx, sessionID, url)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		log.Printf("Error attaching transcript for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// The summarize worker owns the processing -> completed transition and
	// the summary write. Enqueue failures are logged only: the transcript is
	// already attached and the sender's retry will enqueue again.
	err = a.jobs.Enqueue(ctx, "session/summarize", map[string]interface{}{
		"session_id":     sessionID,
		"transcript_url": url,
	})
	if err != nil {
		log.Printf("Error enqueuing summarize job for session %s: %v", sessionID, err)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) handleRecordingReady(c *gin.Context, event *models.WebhookEvent) {
	sessionID := event.SessionID()
	if sessionID == "" || event.CallRecording == nil || event.CallRecording.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing recording reference"})
		return
	}

	err := a.store.AttachRecording(c.Request.Context(), sessionID, event.CallRecording.URL)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		log.Printf("Error attaching recording for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) handleChatMessage(c *gin.Context, event *models.WebhookEvent) {
	if event.Message == nil || strings.TrimSpace(event.Message.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing message"})
		return
	}

	sessionID := event.SessionID()
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session identifier"})
		return
	}

	// Retried deliveries of the same message must not trigger a second
	// completion or a second chat post. A message without an ID cannot be
	// deduped and is treated as new. The check runs after validation so a
	// retried malformed delivery keeps reporting its validation failure.
	if a.dedupe.SeenRecently(event.Message.ID) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "deduped": true})
		return
	}

	ctx := c.Request.Context()

	session, err := a.store.GetSession(ctx, sessionID)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		log.Printf("Error loading session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// The agent only answers after the call has been fully processed; mid-call
	// and pre-call messages belong to the live bridge, not to this path.
	if session.Status != models.StatusCompleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not completed"})
		return
	}

	agent, err := a.store.GetAgent(ctx, session.AgentID)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		log.Printf("Error loading agent %s: %v", session.AgentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Never respond to our own messages.
	if event.Author() == agent.AgentID {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	reply, err := a.composeReply(ctx, event, session, agent)
	if errors.Is(err, ErrNoResponse) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no response produced"})
		return
	}
	if err != nil {
		log.Printf("Error composing reply for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := a.publishReply(ctx, event, agent, reply); err != nil {
		log.Printf("Error publishing reply for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) broadcastStatus(sessionID, agentID string, status models.SessionStatus) {
	a.hub.BroadcastStatus(models.StatusUpdate{
		Type:      "status_update",
		SessionID: sessionID,
		AgentID:   agentID,
		Status:    status,
		Timestamp: time.Now(),
	})
}
