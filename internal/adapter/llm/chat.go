package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-3.5-turbo"
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	defaultDeepSeekModel   = "deepseek-chat"

	defaultTemperature = 0.7
	defaultMaxTokens   = 150
	probeMaxTokens     = 5
)

// ChatCompletionRequest is the OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatMessage is a chat completion message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is a completion choice.
type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// Usage is token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model is an entry of the models list.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ErrorResponse is an API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError is the error detail of an ErrorResponse.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// ChatAdapter talks to any OpenAI-compatible chat-completions endpoint.
type ChatAdapter struct {
	httpBase
	temperature float64
	maxTokens   int
}

var _ Adapter = (*ChatAdapter)(nil)

// NewOpenAI creates the OpenAI adapter.
func NewOpenAI(pc config.ProviderConfig, opts Options) *ChatAdapter {
	return newChatAdapter(config.ProviderOpenAI, "OpenAI", defaultOpenAIBaseURL, defaultOpenAIModel, pc, opts)
}

// NewDeepSeek creates the DeepSeek adapter. DeepSeek speaks the OpenAI wire
// format.
func NewDeepSeek(pc config.ProviderConfig, opts Options) *ChatAdapter {
	return newChatAdapter(config.ProviderDeepSeek, "DeepSeek", defaultDeepSeekBaseURL, defaultDeepSeekModel, pc, opts)
}

func newChatAdapter(id, name, baseURL, model string, pc config.ProviderConfig, opts Options) *ChatAdapter {
	return &ChatAdapter{
		httpBase: httpBase{
			id:          id,
			displayName: name,
			apiKey:      pc.APIKey,
			model:       orDefault(pc.Model, model),
			baseURL:     trimBaseURL(pc.BaseURL, baseURL),
			httpClient:  opts.httpClient(),
			limiter:     opts.limiter(),
		},
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
}

// Generate sends the log as a chat completion.
func (c *ChatAdapter) Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	if !c.Configured() {
		return nil, domain.ErrProviderUnavailable
	}

	chat := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	temperature := c.temperature
	maxTokens := c.maxTokens
	resp, err := c.complete(ctx, &ChatCompletionRequest{
		Model:       c.model,
		Messages:    chat,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, c.emptyCompletion(http.StatusOK)
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &domain.ProviderResponse{Content: content, Model: model, ProviderID: c.id}, nil
}

// Probe sends a single short message with a tiny token budget.
func (c *ChatAdapter) Probe(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	maxTokens := probeMaxTokens
	resp, err := c.complete(ctx, &ChatCompletionRequest{
		Model:     c.model,
		Messages:  []ChatMessage{{Role: string(domain.RoleUser), Content: "Test"}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return false
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content) != ""
}

// complete performs one request and guarantees a non-empty choice list with a
// message on success.
func (c *ChatAdapter) complete(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	req.Stream = false
	status, body, err := c.postJSON(ctx, c.baseURL+"/chat/completions", req, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	})
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, &domain.ProviderError{
				ProviderID: c.id,
				Status:     status,
				Detail:     fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type),
			}
		}
		return nil, &domain.ProviderError{ProviderID: c.id, Status: status, Detail: truncate(string(body), 200)}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, c.malformed(status, err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil {
		return nil, c.emptyCompletion(status)
	}
	return &result, nil
}
