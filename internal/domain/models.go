package domain

import (
	"encoding/json"
	"time"
)

// Message is one entry of a conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ProviderDescriptor describes a registered text-generation backend.
type ProviderDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsFree      bool   `json:"is_free"`
	IsAvailable bool   `json:"is_available"`
}

// ProviderResponse is the result of a single generate call.
type ProviderResponse struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	ProviderID string `json:"provider_id"`
}

// RenderJob tracks one avatar video rendering request.
type RenderJob struct {
	JobID           string      `json:"job_id"`
	SessionID       string      `json:"session_id,omitempty"`
	SourceText      string      `json:"source_text"`
	AvatarSourceURL string      `json:"avatar_source_url"`
	State           RenderState `json:"state"`
	ResultURL       string      `json:"result_url,omitempty"`
	AttemptCount    int         `json:"attempt_count"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Scenario is a practice situation offered to the learner.
type Scenario struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Difficulty       Difficulty `json:"difficulty"`
	ExampleQuestions []string   `json:"example_questions"`
}

// Event is an audit trail entry. Conversation content is never recorded.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id,omitempty"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// FallbackPayload is recorded when a provider failure degrades to mock.
type FallbackPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// ProbePayload is recorded after a provider probe.
type ProbePayload struct {
	ProviderID string `json:"provider_id"`
	Available  bool   `json:"available"`
}
