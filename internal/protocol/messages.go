// Package protocol defines the websocket message protocol between learners'
// clients and the conversation service.
package protocol

import "github.com/gezhip02/chat-english/internal/domain"

// Message types from client to server
const (
	TypeHello        = "hello"
	TypeStartSession = "start_session"
	TypeUserTurn     = "user_turn"
	TypeSetMock      = "set_mock"
	TypeEndSession   = "end_session"
)

// Message types from server to client
const (
	TypeHelloAck         = "hello_ack"
	TypeSessionStarted   = "session_started"
	TypeReply            = "reply"
	TypeRenderProgress   = "render_progress"
	TypeVideoReady       = "video_ready"
	TypeProviderFallback = "provider_fallback"
	TypeSessionEnded     = "session_ended"
	TypeError            = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage binds the connection to a session id. An empty id asks the
// server to allocate one.
type HelloMessage struct {
	BaseMessage
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage confirms the bound session id.
type HelloAckMessage struct {
	BaseMessage
}

// StartSessionMessage starts or restarts the bound session.
type StartSessionMessage struct {
	BaseMessage
	Scenario   string            `json:"scenario"`
	Difficulty domain.Difficulty `json:"difficulty"`
	UseMock    bool              `json:"use_mock,omitempty"`
}

// SessionStartedMessage carries the greeting of a new session.
type SessionStartedMessage struct {
	BaseMessage
	Scenario   string            `json:"scenario"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Greeting   string            `json:"greeting"`
}

// UserTurnMessage carries one finalized utterance.
type UserTurnMessage struct {
	BaseMessage
	Text   string `json:"text"`
	Render bool   `json:"render,omitempty"`
}

// ReplyMessage is the assistant reply to a turn.
type ReplyMessage struct {
	BaseMessage
	Reply      string `json:"reply"`
	Model      string `json:"model"`
	ProviderID string `json:"provider_id"`
}

// SetMockMessage toggles mock replies for the bound session.
type SetMockMessage struct {
	BaseMessage
	UseMock bool `json:"use_mock"`
}

// EndSessionMessage ends the bound session.
type EndSessionMessage struct {
	BaseMessage
}

// RenderProgressMessage reports a render job state change.
type RenderProgressMessage struct {
	BaseMessage
	JobID    string             `json:"job_id"`
	State    domain.RenderState `json:"state"`
	Attempts int                `json:"attempts"`
	Error    string             `json:"error,omitempty"`
}

// VideoReadyMessage carries the URL of a finished render.
type VideoReadyMessage struct {
	BaseMessage
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// ProviderFallbackMessage tells a session its reply came from the mock
// provider after a vendor failure.
type ProviderFallbackMessage struct {
	BaseMessage
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// SessionEndedMessage confirms a session was ended.
type SessionEndedMessage struct {
	BaseMessage
	Reason string `json:"reason,omitempty"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeInvalidInput    = "invalid_input"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeSessionNotFound = "session_not_found"
	ErrorCodeRenderFailed    = "render_failed"
	ErrorCodeRenderTimeout   = "render_timeout"
	ErrorCodeInternalError   = "internal_error"
)
