package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/delta5-hq/d5-sub001/pkg/adapters/openai"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	backend "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint answers every chat completion with reply and records the request.
func fakeEndpoint(t *testing.T, reply string, got *backend.ChatCompletionRequest) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))

		w.Header().Set("Content-Type", "application/json")
		var choices []backend.ChatCompletionChoice
		if reply != "" {
			choices = append(choices, backend.ChatCompletionChoice{
				Message:      backend.ChatCompletionMessage{Role: backend.ChatMessageRoleAssistant, Content: reply},
				FinishReason: backend.FinishReasonStop,
			})
		}
		_ = json.NewEncoder(w).Encode(backend.ChatCompletionResponse{ID: "cmpl", Choices: choices})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestClient_Generate(t *testing.T) {
	var got backend.ChatCompletionRequest
	url := fakeEndpoint(t, "- apples\n- cherries", &got)
	client := openai.New(openai.Config{APIKey: "test-key", BaseURL: url})

	out, err := client.Generate(context.Background(), ports.GenerateRequest{
		QueryType: domain.QueryChat,
		Prompt:    "list red fruits",
		Flags:     map[string]string{"model": "gpt-4o", "temperature": "0.5"},
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "- apples\n- cherries", out)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.InDelta(t, 0.5, got.Temperature, 0.001)
	assert.Equal(t, "u1", got.User)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, backend.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "list red fruits", got.Messages[1].Content)
}

func TestClient_GenerateSummarizeUsesDefaultModel(t *testing.T) {
	var got backend.ChatCompletionRequest
	url := fakeEndpoint(t, "short", &got)
	client := openai.New(openai.Config{APIKey: "test-key", BaseURL: url})

	_, err := client.Generate(context.Background(), ports.GenerateRequest{QueryType: domain.QuerySummarize, Prompt: "long text"})
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultModel, got.Model)
	assert.Contains(t, got.Messages[0].Content, "Summarize")
}

func TestClient_GenerateBadTemperature(t *testing.T) {
	client := openai.New(openai.Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0/v1"})
	_, err := client.Generate(context.Background(), ports.GenerateRequest{Prompt: "x", Flags: map[string]string{"temperature": "hot"}})
	assert.ErrorContains(t, err, "invalid temperature")
}

func TestClient_NoChoices(t *testing.T) {
	var got backend.ChatCompletionRequest
	url := fakeEndpoint(t, "", &got)
	client := openai.New(openai.Config{APIKey: "test-key", BaseURL: url})

	_, err := client.Generate(context.Background(), ports.GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, openai.ErrNoChoices)
}

func TestClient_Classify(t *testing.T) {
	var got backend.ChatCompletionRequest
	url := fakeEndpoint(t, "Yes.", &got)
	client := openai.New(openai.Config{APIKey: "test-key", BaseURL: url, Model: "mini"})

	answer, err := client.Classify(context.Background(), "is it red?", []string{"yes", "no"})
	require.NoError(t, err)
	assert.Equal(t, "Yes.", answer)
	assert.Equal(t, "mini", got.Model)
	assert.Contains(t, got.Messages[0].Content, "yes, no")
}
