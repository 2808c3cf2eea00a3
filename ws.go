package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kmishra1204/OneDialAI-UAT/models"
	"github.com/kmishra1204/OneDialAI-UAT/services"
)

// SessionFeedHandler subscribes a frontend client to live status updates for
// one session
func (a *App) SessionFeedHandler(c *gin.Context) {
	sessionID := c.Param("session_id")

	if _, err := a.store.GetSession(c.Request.Context(), sessionID); err != nil {
		log.Printf("Feed connection attempt for unknown session: %s", sessionID)
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	upgrader := websocket.Upgrader{}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	// Acknowledge before the write pump starts so only one goroutine ever
	// writes to the connection.
	err = conn.WriteJSON(models.ConnectionResponse{
		Type:      "connection",
		Status:    "ok",
		Message:   "subscribed to session updates",
		SessionID: sessionID,
	})
	if err != nil {
		log.Printf("Error sending connection response: %v", err)
		conn.Close()
		return
	}

	client := &services.Client{
		ID:        uuid.New().String(),
		Conn:      conn,
		SessionID: sessionID,
		Send:      make(chan []byte, 16),
		Hub:       a.hub,
	}

	a.hub.Register <- client
	go client.WritePump()

	// Drain inbound frames until the client disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	a.hub.Unregister <- client
}
