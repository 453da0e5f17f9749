// Package domain defines the core domain models for the conversation service.
package domain

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Difficulty is the learner level a scenario is tuned for.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// RenderState represents the lifecycle state of a render job.
type RenderState string

const (
	RenderStateSubmitted RenderState = "submitted"
	RenderStatePending   RenderState = "pending"
	RenderStateDone      RenderState = "done"
	RenderStateFailed    RenderState = "failed"
	RenderStateTimedOut  RenderState = "timed_out"
)

// Terminal reports whether no further transitions are possible.
func (s RenderState) Terminal() bool {
	return s == RenderStateDone || s == RenderStateFailed || s == RenderStateTimedOut
}

// EventType represents the type of an audit event.
type EventType string

const (
	EventTypeProviderFallback EventType = "provider_fallback"
	EventTypeProviderProbe    EventType = "provider_probe"
	EventTypeProviderSwitch   EventType = "provider_switch"
	EventTypeSessionStarted   EventType = "session_started"
	EventTypeSessionEnded     EventType = "session_ended"
	EventTypeTurnBlocked      EventType = "turn_blocked"
	EventTypeRenderDone       EventType = "render_done"
	EventTypeRenderFailed     EventType = "render_failed"
	EventTypeRenderTimedOut   EventType = "render_timed_out"
	EventTypeConfigReloaded   EventType = "config_reloaded"
)
