package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/scenario"
)

// MockChat answers a stateless exchange from the scenario rules without
// creating a session.
func (s *Service) MockChat(ctx context.Context, req domain.MockChatRequest) (*domain.ProviderResponse, error) {
	if len(req.Messages) == 0 {
		return nil, domain.InvalidInputf("messages is required")
	}
	ctx = llm.WithScenario(ctx, scenario.Title(req.Scenario))
	return s.orch.GenerateMock(ctx, req.Messages)
}

// ProxyChatCompletion serves an OpenAI-style completion through the
// registry. Model "mock" forces the mock provider; anything else uses the
// active provider with the usual fallback.
func (s *Service) ProxyChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, domain.InvalidInputf("messages is required")
	}
	messages := make([]domain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := domain.Role(strings.ToLower(m.Role))
		switch role {
		case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
		default:
			return nil, domain.InvalidInputf("unsupported role %q", m.Role)
		}
		messages = append(messages, domain.Message{Role: role, Content: m.Content})
	}

	var (
		resp *domain.ProviderResponse
		err  error
	)
	if strings.EqualFold(req.Model, config.ProviderMock) || strings.EqualFold(req.Model, llm.MockModel) {
		resp, err = s.orch.GenerateMock(ctx, messages)
	} else {
		resp, err = s.orch.Generate(ctx, messages)
	}
	if err != nil {
		return nil, err
	}

	return &llm.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.New().String()[:8],
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []llm.Choice{{
			Index:        0,
			Message:      &llm.ChatMessage{Role: string(domain.RoleAssistant), Content: resp.Content},
			FinishReason: "stop",
		}},
	}, nil
}

// ListModels lists the available providers in the OpenAI models format.
func (s *Service) ListModels(ctx context.Context) []llm.Model {
	providers := s.orch.ListAvailable()
	models := make([]llm.Model, 0, len(providers))
	for _, p := range providers {
		models = append(models, llm.Model{
			ID:      p.ID,
			Object:  "model",
			OwnedBy: p.DisplayName,
		})
	}
	return models
}
