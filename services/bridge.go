package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// BridgeHandle is a live realtime bridge whose session instructions can be
// updated while the call is running
type BridgeHandle interface {
	UpdateInstructions(ctx context.Context, instructions string) error
}

// BridgeClient manages realtime AI bridges through the provider's REST API.
// Open bridges are tracked in process memory so a session never holds more
// than one bridge at a time.
type BridgeClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu   sync.Mutex
	open map[string]string // session ID -> bridge ID
}

// NewBridgeClient creates a realtime bridge provider client
func NewBridgeClient(baseURL, apiKey string) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		open:    make(map[string]string),
	}
}

// Bridge is an open realtime bridge scoped to one session
type Bridge struct {
	ID        string
	SessionID string
	client    *BridgeClient
}

// OpenBridge opens a realtime bridge for the session. A stale bridge left
// open for the same session is ended first.
func (bc *BridgeClient) OpenBridge(ctx context.Context, sessionID string) (BridgeHandle, error) {
	bc.mu.Lock()
	_, stale := bc.open[sessionID]
	bc.mu.Unlock()
	if stale {
		if err := bc.EndBridge(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("ending stale bridge: %w", err)
		}
	}

	var out struct {
		BridgeID string `json:"bridge_id"`
	}
	err := bc.do(ctx, http.MethodPost, "/bridges", map[string]string{"session_id": sessionID}, &out)
	if err != nil {
		return nil, err
	}
	if out.BridgeID == "" {
		return nil, fmt.Errorf("bridge provider returned no bridge id")
	}

	bc.mu.Lock()
	bc.open[sessionID] = out.BridgeID
	bc.mu.Unlock()

	return &Bridge{ID: out.BridgeID, SessionID: sessionID, client: bc}, nil
}

// UpdateInstructions pushes assembled agent instructions into the live bridge
func (b *Bridge) UpdateInstructions(ctx context.Context, instructions string) error {
	path := "/bridges/" + b.ID + "/instructions"
	return b.client.do(ctx, http.MethodPost, path, map[string]string{"instructions": instructions}, nil)
}

// EndBridge terminates the bridge for a session. Ending a session with no
// open bridge is not an error.
func (bc *BridgeClient) EndBridge(ctx context.Context, sessionID string) error {
	bc.mu.Lock()
	bridgeID, ok := bc.open[sessionID]
	if ok {
		delete(bc.open, sessionID)
	}
	bc.mu.Unlock()

	if !ok {
		return nil
	}

	return bc.do(ctx, http.MethodDelete, "/bridges/"+bridgeID, nil, nil)
}

// OpenCount returns the number of bridges currently tracked as open
func (bc *BridgeClient) OpenCount() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.open)
}

func (bc *BridgeClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, bc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+bc.apiKey)
	req.Header.Add("Content-Type", "application/json")

	res, err := bc.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("bridge api %s %s: unexpected status %d", method, path, res.StatusCode)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
