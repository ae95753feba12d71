package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer fakes the Chat Completions endpoint. It records the last
// request body and answers with reply.
func chatServer(t *testing.T, status int, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"` + reply + `","type":"invalid_request_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompatibleChat(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, http.StatusOK, `{"is_final": true, "final_answer": "4"}`, &seen)

	p := NewOpenAICompatibleProvider("groq", srv.URL+"/v1", "test-key", "llama-test", 256, 0)
	resp, err := p.Chat(context.Background(), []ChatMessage{
		SystemMessage("be terse"),
		UserMessage("2+2?"),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"is_final": true, "final_answer": "4"}`, resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, uint32(10), resp.Usage.TotalTokens)
	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, "llama-test", p.Model())

	assert.Equal(t, "llama-test", seen["model"])
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAICompatibleErrorDoesNotLeakKey(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, "invalid api key", nil)
	key := "sk-test-invalid-key-12345xyz"

	p := NewOpenAICompatibleProvider("openai", srv.URL+"/v1", key, "gpt-test", 16, 0)
	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("hi")})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)
	assert.NotContains(t, err.Error(), "Authorization:")
}

type scriptedProvider struct {
	errs  []error
	calls int32
}

func (s *scriptedProvider) Name() string  { return "scripted" }
func (s *scriptedProvider) Model() string { return "m" }
func (s *scriptedProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	n := int(atomic.AddInt32(&s.calls, 1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return LLMResponse{}, s.errs[n]
	}
	return LLMResponse{Content: "ok", Usage: &TokenUsage{TotalTokens: 1}}, nil
}

func TestClientRetriesTransientErrors(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("status code: 429, rate limit"), errors.New("status code: 503")}}
	c := NewClient(p).WithRetries(2)
	c.baseDelay = time.Millisecond

	content, usage, err := c.ChatWithUsage(context.Background(), []ChatMessage{UserMessage("x")})
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Equal(t, uint32(1), usage.TotalTokens)
	assert.Equal(t, int32(3), p.calls)
}

func TestClientDoesNotRetryAuthErrors(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("status code: 401, invalid api key")}}
	c := NewClient(p).WithRetries(3)
	c.baseDelay = time.Millisecond

	_, err := c.Chat(context.Background(), []ChatMessage{UserMessage("x")})
	require.Error(t, err)
	assert.Equal(t, int32(1), p.calls)
}

func TestClientWithoutRetries(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("connection reset")}}
	_, err := NewClient(p).Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), p.calls)
	assert.Equal(t, "scripted/m", NewClient(p).String())
}

func TestParseProviderType(t *testing.T) {
	tests := map[string]ProviderType{
		"openai":    ProviderOpenAI,
		"GPT":       ProviderOpenAI,
		"claude":    ProviderAnthropic,
		"deepseek":  ProviderDeepSeek,
		"google":    ProviderGemini,
		" groq ":    ProviderGroq,
		"anthropic": ProviderAnthropic,
	}
	for in, want := range tests {
		got, err := ParseProviderType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProviderType("mystery")
	assert.Error(t, err)
}

func TestProviderTypeDefaults(t *testing.T) {
	assert.Equal(t, "groq", ProviderGroq.String())
	assert.Equal(t, "GROQ_API_KEY", ProviderGroq.EnvVar())
	assert.Equal(t, ModelGroqLlama33, ProviderGroq.DefaultModel())
}

func TestFromEnvRequiresKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	_, err := ProviderGroq.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")

	t.Setenv("GROQ_API_KEY", "gsk-test")
	p, err := ProviderGroq.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, ModelGroqLlama33, p.Model())
}

func TestBuilderBaseURL(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "pong", nil)

	p, err := ProviderOpenAI.Model("local").BaseURL(srv.URL + "/v1").APIKey("unused")
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(), []ChatMessage{UserMessage("ping")})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
}

func TestConvertMessagesSplitsSystem(t *testing.T) {
	msgs := []ChatMessage{
		SystemMessage("rules"),
		UserMessage("task"),
		AssistantMessage("thinking"),
		UserMessage("observation"),
	}

	anthropicMsgs, system := convertToAnthropicMessages(msgs)
	assert.Equal(t, "rules", system)
	assert.Len(t, anthropicMsgs, 3)

	geminiMsgs, instruction := convertToGeminiMessages(msgs)
	assert.Equal(t, "rules", instruction)
	assert.Len(t, geminiMsgs, 3)
}

func TestTokenUsageAdd(t *testing.T) {
	var total TokenUsage
	total.Add(&TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	total.Add(nil)
	total.Add(&TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	assert.Equal(t, TokenUsage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, total)
}
