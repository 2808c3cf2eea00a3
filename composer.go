package main

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kmishra1204/OneDialAI-UAT/models"
)

// ErrNoResponse is returned when the completion provider produced no usable
// text.
var ErrNoResponse = errors.New("no response produced")

const (
	// historyWindow is how many recent non-empty messages go into the
	// completion context.
	historyWindow = 12

	// historyFetchLimit leaves headroom for entries dropped as empty or as
	// the triggering message itself.
	historyFetchLimit = 30

	summaryPlaceholder      = "[No summary available]"
	instructionsPlaceholder = "[No agent instructions set]"
)

// groundingRules pins the agent to recorded facts. They are appended after
// the agent's own instructions and never overridden by them.
const groundingRules = "Rules:\n" +
	"- Answer only from the call summary and the conversation context above.\n" +
	"- If they are not enough to answer, say so and ask at most two clarifying questions.\n" +
	"- Be concise. Use bullet points where they help."

// buildSystemPrompt assembles the grounded system instructions for a
// post-call chat reply. The summary and the agent instructions are included
// verbatim, with literal placeholders standing in for missing data so the
// model is told explicitly what it does not know.
func buildSystemPrompt(wrapper, summary, instructions string) string {
	blocks := make([]string, 0, 4)

	if wrapper != "" {
		blocks = append(blocks, wrapper)
	}

	if strings.TrimSpace(summary) == "" {
		summary = summaryPlaceholder
	}
	blocks = append(blocks, "Call summary:\n"+summary)

	if strings.TrimSpace(instructions) == "" {
		instructions = instructionsPlaceholder
	}
	blocks = append(blocks, "Agent instructions:\n"+instructions)

	blocks = append(blocks, groundingRules)

	return strings.Join(blocks, "\n\n")
}

// buildBridgeInstructions assembles the live-call instructions pushed into a
// realtime bridge: the policy wrapper followed by the agent's own
// instructions, with empty segments omitted.
func buildBridgeInstructions(wrapper, instructions string) string {
	instructions = strings.TrimSpace(instructions)

	switch {
	case wrapper == "" && instructions == "":
		return ""
	case wrapper == "":
		return instructions
	case instructions == "":
		return wrapper
	}
	return wrapper + "\n\n" + instructions
}

// buildWindow maps retained channel history onto completion roles: the
// agent's own messages become the assistant, everyone else is the user.
// Empty entries and the triggering message are dropped, then the most recent
// limit messages are kept in their original order.
func buildWindow(history []models.ChatMessage, agentID, excludeID string, limit int) []openai.ChatCompletionMessage {
	window := make([]openai.ChatCompletionMessage, 0, len(history))

	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		if excludeID != "" && m.ID == excludeID {
			continue
		}

		role := openai.ChatMessageRoleUser
		if m.UserID == agentID {
			role = openai.ChatMessageRoleAssistant
		}

		window = append(window, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Text,
		})
	}

	if len(window) > limit {
		window = window[len(window)-limit:]
	}

	return window
}

// composeReply builds the grounded prompt for an inbound chat message and
// invokes the completion provider.
func (a *App) composeReply(ctx context.Context, event *models.WebhookEvent, session *models.Session, agent *models.Agent) (string, error) {
	channelType, channelID := event.Channel()
	if channelType == "" {
		channelType, channelID = "messaging", session.SessionID
	}

	history, err := a.chat.FetchHistory(ctx, channelType, channelID, historyFetchLimit)
	if err != nil {
		return "", err
	}

	system := buildSystemPrompt(a.cfg.PolicyWrapper, session.Summary, agent.Instructions)
	window := buildWindow(history, agent.AgentID, event.Message.ID, historyWindow)

	return a.invokeCompletion(ctx, system, window, event.Message.Text)
}

// invokeCompletion issues a single bounded completion request. There is no
// internal retry: provider failures propagate and empty output is a
// validation failure, never silently replaced.
func (a *App) invokeCompletion(ctx context.Context, system string, window []openai.ChatCompletionMessage, userText string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(window)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	messages = append(messages, window...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoResponse
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrNoResponse
	}

	return reply, nil
}

// publishReply posts the completion into the chat channel under the agent's
// identity. The identity upsert must finish before the send so the message
// never renders under default user metadata.
func (a *App) publishReply(ctx context.Context, event *models.WebhookEvent, agent *models.Agent, reply string) error {
	channelType, channelID := event.Channel()
	if channelType == "" {
		channelType, channelID = "messaging", event.SessionID()
	}

	identity := models.Identity{
		ID:        agent.AgentID,
		Name:      agent.Name,
		AvatarURL: agent.AvatarURL,
	}

	if err := a.chat.UpsertIdentity(ctx, identity); err != nil {
		return err
	}
	return a.chat.SendMessage(ctx, channelType, channelID, reply, identity)
}
