package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WorkflowClient enqueues background jobs over HTTP. Enqueue is fire-and-
// forget: the consumer side provides at-least-once execution, this client
// only hands the job off.
type WorkflowClient struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewWorkflowClient creates a workflow enqueue client
func NewWorkflowClient(url, apiKey string) *WorkflowClient {
	return &WorkflowClient{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enqueue submits a named job with its payload
func (wc *WorkflowClient) Enqueue(ctx context.Context, name string, payload map[string]interface{}) error {
	job := map[string]interface{}{
		"name": name,
		"data": payload,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+wc.apiKey)
	req.Header.Add("Content-Type", "application/json")

	res, err := wc.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("workflow enqueue %s: unexpected status %d", name, res.StatusCode)
	}

	return nil
}
