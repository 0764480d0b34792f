package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a supervisor managing a conversation between the following workers.

WORKER: information
DESCRIPTION: specialized agent that provides information about doctor availability and hospital FAQs.

WORKER: booking
DESCRIPTION: specialized agent that only books, cancels or reschedules appointments.

WORKER: finish
DESCRIPTION: route here once the user's query is answered.

Your primary role is to help the user make an appointment with a doctor and provide updates on FAQs and doctor availability. Delegate availability questions to information and booking actions to booking. When all tasks are completed and the user query is resolved, respond with finish.

CRITICAL RULES:
1. If an appointment was successfully booked, cancelled, or rescheduled, return finish immediately.
2. If the user's query is clearly answered and no further action is needed, return finish.
3. If a worker already responded and the user has not asked a NEW question, return finish.
4. If the same assistant response appears multiple times in the conversation, return finish.
5. Do not route back to a worker that just responded; return finish instead.

Respond with a JSON object: {"next": "information" | "booking" | "finish", "reasoning": "..."}`

// routerReply is the structured decision the classifier is asked to emit.
type routerReply struct {
	Next      string `json:"next"`
	Reasoning string `json:"reasoning"`
}

// ChatOracle implements Oracle against an OpenAI-compatible chat-completions
// endpoint. All transport, quota and parse errors collapse to KindFailed.
type ChatOracle struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// ChatOracleConfig holds configuration for the classifier client.
type ChatOracleConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// NewChatOracle creates an oracle backed by a chat-completions API.
func NewChatOracle(cfg ChatOracleConfig, logger *slog.Logger) *ChatOracle {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatOracle{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}
}

// Decide asks the classifier for the next actor. It never returns an error;
// any failure yields KindFailed for the coordinator's fallback to consume.
func (o *ChatOracle) Decide(ctx context.Context, view []domain.Turn, patientID string) Decision {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(view)+2)
	messages = append(messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("user's identification number is %s", patientID)},
	)
	for _, t := range view {
		role := openai.ChatMessageRoleUser
		if t.IsAssistant() {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		o.logger.Warn("oracle request failed", "error", err)
		return Failed()
	}
	if len(resp.Choices) == 0 {
		o.logger.Warn("oracle returned no choices")
		return Failed()
	}

	var reply routerReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		o.logger.Warn("oracle reply unparseable", "error", err)
		return Failed()
	}

	switch normalizeActor(reply.Next) {
	case domain.ActorInformation:
		return Routed(domain.ActorInformation, reply.Reasoning)
	case domain.ActorBooking:
		return Routed(domain.ActorBooking, reply.Reasoning)
	case "finish":
		return Finish(reply.Reasoning)
	default:
		// An actor outside the closed vocabulary is as good as no decision.
		o.logger.Warn("oracle proposed unknown actor", "next", reply.Next)
		return Failed()
	}
}

// normalizeActor maps classifier spellings onto the closed actor set.
func normalizeActor(next string) domain.Actor {
	next = strings.ToLower(strings.TrimSpace(next))
	next = strings.TrimSuffix(next, "_node")
	return domain.Actor(next)
}
