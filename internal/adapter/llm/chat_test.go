package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
)

var testLog = []domain.Message{
	{Role: domain.RoleSystem, Content: "You are a barista."},
	{Role: domain.RoleUser, Content: "hello"},
}

func TestChatAdapterGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "deepseek-chat" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 150 {
			t.Errorf("expected max_tokens 150")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[{"index":0,"message":{"role":"assistant","content":" hi there "},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	adapter := NewDeepSeek(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, Options{Timeout: time.Second})
	resp, err := adapter.Generate(context.Background(), testLog)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "hi there" || resp.ProviderID != "deepseek" || resp.Model != "deepseek-chat" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatAdapterVendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	adapter := NewOpenAI(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL}, Options{})
	_, err := adapter.Generate(context.Background(), testLog)

	var perr *domain.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusUnauthorized || perr.ProviderID != "openai" {
		t.Fatalf("unexpected error: %+v", perr)
	}
}

func TestChatAdapterEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer server.Close()

	adapter := NewOpenAI(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL}, Options{})
	_, err := adapter.Generate(context.Background(), testLog)
	var perr *domain.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if adapter.Probe(context.Background()) {
		t.Fatalf("probe should fail on empty choices")
	}
}

func TestChatAdapterMissingCredentials(t *testing.T) {
	adapter := NewOpenAI(config.ProviderConfig{}, Options{})
	if adapter.Configured() {
		t.Fatalf("adapter without key should not be configured")
	}
	_, err := adapter.Generate(context.Background(), testLog)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if adapter.Probe(context.Background()) {
		t.Fatalf("probe without credentials should fail")
	}
}

func TestChatAdapterProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens == nil || *req.MaxTokens != 5 || req.Messages[0].Content != "Test" {
			t.Errorf("unexpected probe request: %+v", req)
		}
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer server.Close()

	adapter := NewOpenAI(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL}, Options{})
	if !adapter.Probe(context.Background()) {
		t.Fatalf("expected probe success")
	}
}

func TestChatAdapterProbeEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`)
	}))
	defer server.Close()

	adapter := NewOpenAI(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL}, Options{})
	if adapter.Probe(context.Background()) {
		t.Fatalf("probe should fail on an empty completion")
	}
}

func TestChatAdapterTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	adapter := NewOpenAI(config.ProviderConfig{APIKey: "sk-test", BaseURL: url}, Options{Timeout: time.Second})
	_, err := adapter.Generate(context.Background(), testLog)
	var perr *domain.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestChatAdapterContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewOpenAI(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL}, Options{})
	_, err := adapter.Generate(ctx, testLog)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
