package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinicdesk/clinicdesk/internal/domain"
)

// fakeCompletions serves a canned chat-completions reply and records the
// request it received.
func fakeCompletions(t *testing.T, content string, gotReq *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotReq != nil {
			if err := json.NewDecoder(r.Body).Decode(gotReq); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func newTestOracle(baseURL string) *ChatOracle {
	return NewChatOracle(ChatOracleConfig{
		BaseURL:        baseURL + "/v1",
		APIKey:         "test-key",
		Model:          "test-model",
		RequestTimeout: 5 * time.Second,
	}, nil)
}

func TestDecideRoutesActors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Decision
	}{
		{
			"information",
			`{"next": "information", "reasoning": "user asks about availability"}`,
			Routed(domain.ActorInformation, "user asks about availability"),
		},
		{
			"booking",
			`{"next": "booking", "reasoning": "user wants to book"}`,
			Routed(domain.ActorBooking, "user wants to book"),
		},
		{
			"finish",
			`{"next": "finish", "reasoning": "query resolved"}`,
			Finish("query resolved"),
		},
		{
			"node suffix and casing normalized",
			`{"next": "Information_node", "reasoning": "availability"}`,
			Routed(domain.ActorInformation, "availability"),
		},
		{
			"unknown actor fails",
			`{"next": "surgeon", "reasoning": "?"}`,
			Failed(),
		},
		{
			"unparseable reply fails",
			`next: booking`,
			Failed(),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := fakeCompletions(t, tt.content, nil)
			defer srv.Close()

			o := newTestOracle(srv.URL)
			got := o.Decide(context.Background(), []domain.Turn{domain.UserTurn("hello")}, "123456789")
			if got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecideSendsConversationView(t *testing.T) {
	t.Parallel()

	var gotReq openai.ChatCompletionRequest
	srv := fakeCompletions(t, `{"next": "finish", "reasoning": "done"}`, &gotReq)
	defer srv.Close()

	view := []domain.Turn{
		domain.UserTurn("when is dr doe free?"),
		domain.AssistantTurn(domain.ActorInformation, "Dr. Doe has slots at 8 AM."),
	}
	o := newTestOracle(srv.URL)
	o.Decide(context.Background(), view, "987654321")

	// system prompt + identity + two conversation turns
	if len(gotReq.Messages) != 4 {
		t.Fatalf("sent %d messages, want 4", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message role = %q, want system", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[1].Content != "user's identification number is 987654321" {
		t.Errorf("identity message = %q", gotReq.Messages[1].Content)
	}
	if gotReq.Messages[2].Role != openai.ChatMessageRoleUser || gotReq.Messages[2].Content != view[0].Text {
		t.Errorf("user turn = %+v", gotReq.Messages[2])
	}
	if gotReq.Messages[3].Role != openai.ChatMessageRoleAssistant || gotReq.Messages[3].Content != view[1].Text {
		t.Errorf("assistant turn = %+v", gotReq.Messages[3])
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Error("response format not pinned to json_object")
	}
}

func TestDecideFailsOnTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := newTestOracle(srv.URL)
	if got := o.Decide(context.Background(), []domain.Turn{domain.UserTurn("hi")}, "123"); got != Failed() {
		t.Errorf("Decide() = %+v, want Failed", got)
	}
}

func TestDecideFailsOnUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	o := NewChatOracle(ChatOracleConfig{
		BaseURL:        "http://127.0.0.1:1/v1",
		APIKey:         "test-key",
		Model:          "test-model",
		RequestTimeout: time.Second,
	}, nil)
	if got := o.Decide(context.Background(), []domain.Turn{domain.UserTurn("hi")}, "123"); got != Failed() {
		t.Errorf("Decide() = %+v, want Failed", got)
	}
}
