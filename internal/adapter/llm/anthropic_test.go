package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
)

func TestAnthropicAdapterGenerate(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"id":"msg_1","model":"claude-3-haiku-20240307","content":[{"type":"text","text":"Welcome!"}],"stop_reason":"end_turn"}`)
	}))
	defer server.Close()

	adapter := NewAnthropic(config.ProviderConfig{APIKey: "sk-ant", BaseURL: server.URL + "/v1"}, Options{})
	resp, err := adapter.Generate(context.Background(), testLog)
	require.NoError(t, err)

	assert.Equal(t, "Welcome!", resp.Content)
	assert.Equal(t, "anthropic", resp.ProviderID)
	assert.Equal(t, "You are a barista.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, 150, got.MaxTokens)
}

func TestAnthropicAdapterError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	adapter := NewAnthropic(config.ProviderConfig{APIKey: "sk-ant", BaseURL: server.URL}, Options{})
	_, err := adapter.Generate(context.Background(), testLog)

	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
	assert.Contains(t, perr.Detail, "slow down")
	assert.False(t, adapter.Probe(context.Background()))
}
