package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-3-haiku-20240307"
	anthropicVersion        = "2023-06-01"
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicAdapter talks to the Anthropic Messages API.
type AnthropicAdapter struct {
	httpBase
	temperature float64
	maxTokens   int
}

var _ Adapter = (*AnthropicAdapter)(nil)

// NewAnthropic creates the Anthropic adapter.
func NewAnthropic(pc config.ProviderConfig, opts Options) *AnthropicAdapter {
	return &AnthropicAdapter{
		httpBase: httpBase{
			id:          config.ProviderAnthropic,
			displayName: "Anthropic Claude",
			apiKey:      pc.APIKey,
			model:       orDefault(pc.Model, defaultAnthropicModel),
			baseURL:     trimBaseURL(pc.BaseURL, defaultAnthropicBaseURL),
			httpClient:  opts.httpClient(),
			limiter:     opts.limiter(),
		},
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
}

// Generate lifts system messages into the top-level system field and sends
// the rest as the message list.
func (a *AnthropicAdapter) Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	if !a.Configured() {
		return nil, domain.ErrProviderUnavailable
	}

	var system []string
	turns := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	temperature := a.temperature
	resp, err := a.send(ctx, &anthropicRequest{
		Model:       a.model,
		System:      strings.Join(system, "\n\n"),
		Messages:    turns,
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, a.emptyCompletion(http.StatusOK)
	}
	model := resp.Model
	if model == "" {
		model = a.model
	}
	return &domain.ProviderResponse{Content: content, Model: model, ProviderID: a.id}, nil
}

// Probe sends one short user message.
func (a *AnthropicAdapter) Probe(ctx context.Context) bool {
	if !a.Configured() {
		return false
	}
	resp, err := a.send(ctx, &anthropicRequest{
		Model:     a.model,
		Messages:  []anthropicMessage{{Role: string(domain.RoleUser), Content: "Test"}},
		MaxTokens: probeMaxTokens,
	})
	return err == nil && len(resp.Content) > 0
}

func (a *AnthropicAdapter) send(ctx context.Context, req *anthropicRequest) (*anthropicResponse, error) {
	status, body, err := a.postJSON(ctx, a.baseURL+"/messages", req, func(r *http.Request) {
		r.Header.Set("x-api-key", a.apiKey)
		r.Header.Set("anthropic-version", anthropicVersion)
	})
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		var errResp anthropicErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &domain.ProviderError{ProviderID: a.id, Status: status, Detail: errResp.Error.Type + ": " + errResp.Error.Message}
		}
		return nil, &domain.ProviderError{ProviderID: a.id, Status: status, Detail: truncate(string(body), 200)}
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, a.malformed(status, err)
	}
	return &result, nil
}
