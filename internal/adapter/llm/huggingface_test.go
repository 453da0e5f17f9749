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

func TestFormatPrompt(t *testing.T) {
	prompt := FormatPrompt([]domain.Message{
		{Role: domain.RoleSystem, Content: "Be kind."},
		{Role: domain.RoleUser, Content: "Hi"},
		{Role: domain.RoleAssistant, Content: "Hello!"},
		{Role: domain.RoleUser, Content: "A latte please"},
	})
	want := "<|system|>\nBe kind.\n" +
		"<|user|>\nHi\n" +
		"<|assistant|>\nHello!\n" +
		"<|user|>\nA latte please\n" +
		"<|assistant|>\n"
	assert.Equal(t, want, prompt)
}

func TestFormatPromptWithoutSystem(t *testing.T) {
	assert.Equal(t, "<|user|>\nHi\n<|assistant|>\n", FormatPrompt([]domain.Message{{Role: domain.RoleUser, Content: "Hi"}}))
}

func TestHuggingFaceGenerateArrayResponse(t *testing.T) {
	var got hfRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/mistralai/Mistral-7B-Instruct-v0.2", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `[{"generated_text":"Sure, one latte."}]`)
	}))
	defer server.Close()

	adapter := NewHuggingFace(config.ProviderConfig{APIKey: "hf-key", BaseURL: server.URL + "/models"}, Options{})
	resp, err := adapter.Generate(context.Background(), testLog)
	require.NoError(t, err)

	assert.Equal(t, "Sure, one latte.", resp.Content)
	assert.True(t, adapter.Info().IsFree)
	assert.Equal(t, 150, got.Parameters.MaxNewTokens)
	require.NotNil(t, got.Parameters.ReturnFullText)
	assert.False(t, *got.Parameters.ReturnFullText)
	assert.Equal(t, FormatPrompt(testLog), got.Inputs)
}

func TestHuggingFaceGenerateObjectResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"generated_text":"Object reply"}`)
	}))
	defer server.Close()

	adapter := NewHuggingFace(config.ProviderConfig{APIKey: "hf-key", BaseURL: server.URL}, Options{})
	resp, err := adapter.Generate(context.Background(), testLog)
	require.NoError(t, err)
	assert.Equal(t, "Object reply", resp.Content)
}

func TestHuggingFaceMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	adapter := NewHuggingFace(config.ProviderConfig{APIKey: "hf-key", BaseURL: server.URL}, Options{})
	_, err := adapter.Generate(context.Background(), testLog)
	var perr *domain.ProviderError
	assert.True(t, errors.As(err, &perr))
}

func TestHuggingFaceModelLoading(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"Model is currently loading"}`)
	}))
	defer server.Close()

	adapter := NewHuggingFace(config.ProviderConfig{APIKey: "hf-key", BaseURL: server.URL}, Options{})
	_, err := adapter.Generate(context.Background(), testLog)
	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Model is currently loading", perr.Detail)
}

func TestHuggingFaceProbe(t *testing.T) {
	reply := `[{"generated_text":"I am fine"}]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reply)
	}))
	defer server.Close()

	adapter := NewHuggingFace(config.ProviderConfig{APIKey: "hf-key", BaseURL: server.URL}, Options{})
	assert.True(t, adapter.Probe(context.Background()))

	reply = `[{"generated_text":""}]`
	assert.False(t, adapter.Probe(context.Background()))
}
