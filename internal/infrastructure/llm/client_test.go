package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAnalyst/internal/config"
	"NewsAnalyst/internal/ports"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"article_ids":[1,2]}`,
			want:  `{"article_ids":[1,2]}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"article_ids\":[3]}\n```",
			want:  `{"article_ids":[3]}`,
		},
		{
			name:  "drops prose around the object",
			input: "Sure! Here you go: {\"article_ids\":[4]} Hope that helps.",
			want:  `{"article_ids":[4]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONResponse(tt.input))
		})
	}
}

func TestSystemPromptAppendsShape(t *testing.T) {
	got := systemPrompt(ports.CompletionRequest{System: "You pick articles.", Shape: `{"article_ids": [int]}`})
	assert.True(t, strings.HasPrefix(got, "You pick articles.\n\n"))
	assert.Contains(t, got, `{"article_ids": [int]}`)

	assert.Equal(t, "free", systemPrompt(ports.CompletionRequest{System: "free"}))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err)

	_, err = New(config.LLMConfig{Provider: "local", APIKey: "k"})
	assert.Error(t, err)
}

func TestOpenAIClientComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "`+"```json\\n{\\\"article_ids\\\":[7,3]}\\n```"+`"}
			}]
		}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	got, err := client.Complete(context.Background(), ports.CompletionRequest{
		System: "pick",
		Prompt: "question",
		Shape:  `{"article_ids": [int]}`,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"article_ids":[7,3]}`, got)
	assert.Equal(t, "gpt-4o-mini", body["model"])
}

func TestOpenAIClientDoesNotRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "q"})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnthropicClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Reuters reports the budget passed."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 8}
		}`)
	}))
	defer srv.Close()

	client := NewAnthropicClient(config.LLMConfig{APIKey: "sk-ant", BaseURL: srv.URL + "/"})
	got, err := client.Complete(context.Background(), ports.CompletionRequest{System: "compose", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Reuters reports the budget passed.", got)
}
