package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
)

const (
	defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co/models"
	defaultHuggingFaceModel   = "mistralai/Mistral-7B-Instruct-v0.2"
)

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText *bool    `json:"return_full_text,omitempty"`
}

type hfGeneration struct {
	GeneratedText *string `json:"generated_text"`
}

// HuggingFaceAdapter talks to the hosted inference API with a flat,
// role-tagged prompt.
type HuggingFaceAdapter struct {
	httpBase
	temperature float64
	maxTokens   int
}

var _ Adapter = (*HuggingFaceAdapter)(nil)

// NewHuggingFace creates the Hugging Face adapter.
func NewHuggingFace(pc config.ProviderConfig, opts Options) *HuggingFaceAdapter {
	return &HuggingFaceAdapter{
		httpBase: httpBase{
			id:          config.ProviderHuggingFace,
			displayName: "Hugging Face",
			free:        true,
			apiKey:      pc.APIKey,
			model:       orDefault(pc.Model, defaultHuggingFaceModel),
			baseURL:     trimBaseURL(pc.BaseURL, defaultHuggingFaceBaseURL),
			httpClient:  opts.httpClient(),
			limiter:     opts.limiter(),
		},
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
}

// FormatPrompt flattens a message log into the tagged prompt format. System
// text is placed first regardless of where it appears in the log.
func FormatPrompt(messages []domain.Message) string {
	var system, turns strings.Builder
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system.WriteString("<|system|>\n" + m.Content + "\n")
		case domain.RoleUser:
			turns.WriteString("<|user|>\n" + m.Content + "\n")
		case domain.RoleAssistant:
			turns.WriteString("<|assistant|>\n" + m.Content + "\n")
		}
	}
	return system.String() + turns.String() + "<|assistant|>\n"
}

// Generate sends the flattened prompt.
func (h *HuggingFaceAdapter) Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	if !h.Configured() {
		return nil, domain.ErrProviderUnavailable
	}

	temperature := h.temperature
	fullText := false
	text, err := h.send(ctx, &hfRequest{
		Inputs: FormatPrompt(messages),
		Parameters: hfParameters{
			MaxNewTokens:   h.maxTokens,
			Temperature:    &temperature,
			ReturnFullText: &fullText,
		},
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(text)
	if content == "" {
		return nil, h.emptyCompletion(http.StatusOK)
	}
	return &domain.ProviderResponse{Content: content, Model: h.model, ProviderID: h.id}, nil
}

// Probe sends a short prompt with a tiny token budget.
func (h *HuggingFaceAdapter) Probe(ctx context.Context) bool {
	if !h.Configured() {
		return false
	}
	text, err := h.send(ctx, &hfRequest{
		Inputs:     "Hello, how are you?",
		Parameters: hfParameters{MaxNewTokens: probeMaxTokens},
	})
	return err == nil && strings.TrimSpace(text) != ""
}

func (h *HuggingFaceAdapter) send(ctx context.Context, req *hfRequest) (string, error) {
	status, body, err := h.postJSON(ctx, h.baseURL+"/"+h.model, req, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+h.apiKey)
	})
	if err != nil {
		return "", err
	}

	if status != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return "", &domain.ProviderError{ProviderID: h.id, Status: status, Detail: errResp.Error}
		}
		return "", &domain.ProviderError{ProviderID: h.id, Status: status, Detail: truncate(string(body), 200)}
	}

	text, err := parseGeneration(body)
	if err != nil {
		return "", h.malformed(status, err)
	}
	return text, nil
}

// parseGeneration accepts either [{"generated_text": ...}] or
// {"generated_text": ...}.
func parseGeneration(body []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 || list[0].GeneratedText == nil {
			return "", errors.New("no generated_text in response")
		}
		return *list[0].GeneratedText, nil
	}

	var single hfGeneration
	if err := json.Unmarshal(body, &single); err != nil {
		return "", err
	}
	if single.GeneratedText == nil {
		return "", errors.New("no generated_text in response")
	}
	return *single.GeneratedText, nil
}
