package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/twilio/twilio-go/twiml"

	"github.com/kmishra1204/OneDialAI-UAT/models"
	"github.com/kmishra1204/OneDialAI-UAT/services"
)

// TwilioDialHandler answers a phone dial-in for an agent. It registers a
// scheduled session owned by the agent and returns TwiML that streams the
// caller's audio into the realtime bridge; the platform's session_started
// webhook then drives the normal lifecycle.
func (a *App) TwilioDialHandler(c *gin.Context) {
	agentID := c.Param("agent_id")
	callerNumber := c.PostForm("From")

	agent, err := a.store.GetAgent(c.Request.Context(), agentID)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		log.Printf("Error loading agent %s: %v", agentID, err)
		c.JSON(http.StatusInternalServerError, "cannot handle call atm")
		return
	}

	now := time.Now()
	session := &models.Session{
		SessionID:    uuid.New().String(),
		AgentID:      agent.AgentID,
		Status:       models.StatusScheduled,
		CallerNumber: callerNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.store.CreateSession(c.Request.Context(), session); err != nil {
		log.Printf("Error creating session for agent %s: %v", agentID, err)
		c.JSON(http.StatusInternalServerError, "cannot handle call atm")
		return
	}

	stream := &twiml.VoiceStream{
		Url: a.cfg.BridgeAudioURL + "/" + session.SessionID,
	}

	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	twimlResult, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		c.JSON(http.StatusInternalServerError, "cannot handle call atm")
		return
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twimlResult)
}
