package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kmishra1204/OneDialAI-UAT/models"
)

// ChatClient talks to the chat platform's REST API
type ChatClient struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
}

// NewChatClient creates a chat platform client
func NewChatClient(baseURL, apiKey, secret string) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifySignature checks a webhook body against its signature header. The
// platform signs the raw body with HMAC-SHA256 keyed by the API secret and
// sends the hex digest.
func (cc *ChatClient) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(cc.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// UpsertIdentity creates or updates the chat user the agent posts as. Callers
// must await this before sending a message so the reply never renders under
// default user metadata.
func (cc *ChatClient) UpsertIdentity(ctx context.Context, identity models.Identity) error {
	payload := map[string]interface{}{
		"user": identity,
	}
	return cc.do(ctx, http.MethodPost, "/users", payload, nil)
}

// SendMessage posts text into a channel attributed to the given identity
func (cc *ChatClient) SendMessage(ctx context.Context, channelType, channelID, text string, identity models.Identity) error {
	payload := map[string]interface{}{
		"message": map[string]string{
			"text":    text,
			"user_id": identity.ID,
		},
	}
	path := fmt.Sprintf("/channels/%s/%s/message", url.PathEscape(channelType), url.PathEscape(channelID))
	return cc.do(ctx, http.MethodPost, path, payload, nil)
}

// FetchHistory returns up to limit retained messages for a channel, oldest
// first
func (cc *ChatClient) FetchHistory(ctx context.Context, channelType, channelID string, limit int) ([]models.ChatMessage, error) {
	path := fmt.Sprintf("/channels/%s/%s/messages?limit=%s",
		url.PathEscape(channelType), url.PathEscape(channelID), strconv.Itoa(limit))

	var out struct {
		Messages []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"messages"`
	}
	if err := cc.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	history := make([]models.ChatMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		history = append(history, models.ChatMessage{
			ID:     m.ID,
			Text:   m.Text,
			UserID: m.User.ID,
		})
	}

	return history, nil
}

func (cc *ChatClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, cc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+cc.apiKey)
	req.Header.Add("Content-Type", "application/json")

	res, err := cc.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("chat api %s %s: unexpected status %d", method, path, res.StatusCode)
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
