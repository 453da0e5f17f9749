package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gezhip02/chat-english/internal/conversation"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/protocol"
	"github.com/gezhip02/chat-english/internal/render"
	"github.com/gezhip02/chat-english/internal/scenario"
	"github.com/gezhip02/chat-english/policy"
)

type sessionEntry struct {
	id      string
	session *conversation.Session
	// ctx is cancelled when the session ends; renders started by the
	// session derive from it.
	ctx        context.Context
	cancel     context.CancelFunc
	lastActive atomic.Int64
}

func (e *sessionEntry) touch() {
	e.lastActive.Store(time.Now().UnixMilli())
}

type sessionKey struct{}

// withSessionID tags ctx so registry events raised during a turn can be
// attributed to the session.
func withSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// StartSession creates a session, or restarts the one with sessionID, and
// returns its greeting. The greeting is not part of the message log.
func (s *Service) StartSession(ctx context.Context, sessionID string, req domain.StartSessionRequest) (*domain.StartSessionResponse, error) {
	if strings.TrimSpace(req.Scenario) == "" {
		return nil, domain.InvalidInputf("scenario is required")
	}
	difficulty := domain.Difficulty(strings.ToLower(string(req.Difficulty)))
	if difficulty == "" {
		difficulty = domain.DifficultyBeginner
	}
	if !difficulty.Valid() {
		return nil, domain.InvalidInputf("unknown difficulty %q", req.Difficulty)
	}
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}

	s.sessMu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		// Restarting abandons renders of the previous conversation.
		e.cancel()
	} else {
		e = &sessionEntry{id: sessionID, session: conversation.New(s.orch)}
		s.sessions[sessionID] = e
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	count := len(s.sessions)
	s.sessMu.Unlock()

	e.session.Start(req.Scenario, difficulty)
	e.session.SetUseMock(req.UseMock)
	e.touch()
	s.metrics.SetActiveSessions(count)

	title, _ := e.session.Scenario()
	if err := s.recordEvent(ctx, sessionID, domain.EventTypeSessionStarted, map[string]interface{}{
		"scenario":   title,
		"difficulty": difficulty,
		"use_mock":   req.UseMock,
	}); err != nil {
		log.Printf("WARN: failed to record session start %s: %v", sessionID, err)
	}

	return &domain.StartSessionResponse{
		SessionID:  sessionID,
		Scenario:   title,
		Difficulty: difficulty,
		Greeting:   e.session.InitialGreeting(),
	}, nil
}

func (s *Service) lookup(sessionID string) (*sessionEntry, error) {
	s.sessMu.RLock()
	e, ok := s.sessions[sessionID]
	s.sessMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return e, nil
}

// SubmitTurn checks the utterance against the turn policy, runs one turn and,
// when asked, renders the reply as an avatar video. A render failure is
// returned together with the reply.
func (s *Service) SubmitTurn(ctx context.Context, sessionID string, req domain.TurnRequest) (*domain.TurnResponse, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	e.touch()

	text := strings.TrimSpace(req.Text)
	if err := s.checkTurn(ctx, e, text); err != nil {
		return nil, err
	}

	ctx = withSessionID(ctx, sessionID)
	resp, err := e.session.Turn(ctx, text)
	if err != nil {
		return nil, err
	}

	out := &domain.TurnResponse{
		SessionID:  sessionID,
		Reply:      resp.Content,
		Model:      resp.Model,
		ProviderID: resp.ProviderID,
	}
	s.notify(sessionID, protocol.ReplyMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeReply, Ts: time.Now().UnixMilli(), SessionID: sessionID},
		Reply:       out.Reply,
		Model:       out.Model,
		ProviderID:  out.ProviderID,
	})

	if !req.Render {
		return out, nil
	}

	job, err := s.renderForSession(ctx, e, out.Reply)
	if job != nil {
		out.RenderJob = job.JobID
		out.VideoURL = job.ResultURL
	}
	return out, err
}

func (s *Service) checkTurn(ctx context.Context, e *sessionEntry, text string) error {
	if s.policyEngine == nil {
		return nil
	}
	title, _ := e.session.Scenario()
	decision, reason, err := s.policyEngine.Evaluate(ctx, policy.TurnInput{
		Text:     text,
		Chars:    utf8.RuneCountInString(text),
		MaxChars: s.cfg().MaxTurnChars,
		Scenario: title,
		UseMock:  e.session.UseMock(),
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate turn policy: %w", err)
	}
	if decision != policy.DecisionBlock {
		return nil
	}
	if reason == "" {
		reason = "turn blocked by policy"
	}
	if err := s.recordEvent(ctx, e.id, domain.EventTypeTurnBlocked, map[string]interface{}{
		"reason": reason,
		"chars":  utf8.RuneCountInString(text),
	}); err != nil {
		log.Printf("WARN: failed to record blocked turn %s: %v", e.id, err)
	}
	return domain.InvalidInputf("%s", reason)
}

// renderForSession runs a render bound to both the caller's context and the
// session's lifetime.
func (s *Service) renderForSession(ctx context.Context, e *sessionEntry, text string) (*domain.RenderJob, error) {
	if s.renderer == nil {
		return nil, &domain.RenderSubmitError{Detail: "avatar rendering is not configured"}
	}

	s.sessMu.RLock()
	sessCtx := e.ctx
	s.sessMu.RUnlock()

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessCtx, cancel)
	defer stop()

	return s.renderer.Run(renderCtx, render.Request{
		SessionID: e.id,
		Text:      text,
		SourceURL: s.cfg().AvatarSourceURL,
	})
}

// Greeting returns the opening line of a started session.
func (s *Service) Greeting(ctx context.Context, sessionID string) (string, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return "", err
	}
	if !e.session.Started() {
		return "", domain.InvalidInputf("session has not been started")
	}
	return e.session.InitialGreeting(), nil
}

// RenderGreeting renders the greeting of a session as an avatar video.
func (s *Service) RenderGreeting(ctx context.Context, sessionID string) (*domain.RenderJob, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if !e.session.Started() {
		return nil, domain.InvalidInputf("session has not been started")
	}
	return s.renderForSession(ctx, e, e.session.InitialGreeting())
}

// SetUseMock toggles mock replies for one session.
func (s *Service) SetUseMock(ctx context.Context, sessionID string, useMock bool) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	e.session.SetUseMock(useMock)
	e.touch()
	return nil
}

// GetMessages returns a copy of the session log.
func (s *Service) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.session.Messages(), nil
}

// SessionInfo summarizes a live session.
type SessionInfo struct {
	SessionID  string            `json:"session_id"`
	Scenario   string            `json:"scenario"`
	Difficulty domain.Difficulty `json:"difficulty"`
	UseMock    bool              `json:"use_mock"`
	Turns      int               `json:"turns"`
}

// GetSession describes a live session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	title, difficulty := e.session.Scenario()
	turns := 0
	for _, m := range e.session.Messages() {
		if m.Role == domain.RoleUser {
			turns++
		}
	}
	return &SessionInfo{
		SessionID:  sessionID,
		Scenario:   title,
		Difficulty: difficulty,
		UseMock:    e.session.UseMock(),
		Turns:      turns,
	}, nil
}

// EndSession clears the session and cancels its in-flight renders.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	return s.endSession(ctx, sessionID, "ended by client")
}

func (s *Service) endSession(ctx context.Context, sessionID, reason string) error {
	s.sessMu.Lock()
	e, ok := s.sessions[sessionID]
	var cancel context.CancelFunc
	if ok {
		delete(s.sessions, sessionID)
		cancel = e.cancel
	}
	count := len(s.sessions)
	s.sessMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	cancel()
	e.session.End()
	s.metrics.SetActiveSessions(count)

	if err := s.recordEvent(ctx, sessionID, domain.EventTypeSessionEnded, map[string]string{"reason": reason}); err != nil {
		log.Printf("WARN: failed to record session end %s: %v", sessionID, err)
	}
	s.notify(sessionID, protocol.SessionEndedMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeSessionEnded, Ts: time.Now().UnixMilli(), SessionID: sessionID},
		Reason:      reason,
	})
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	return len(s.sessions)
}

// ListScenarios returns the catalog, optionally filtered by difficulty.
func (s *Service) ListScenarios(difficulty string) ([]domain.Scenario, error) {
	if difficulty == "" {
		return scenario.All(), nil
	}
	d := domain.Difficulty(strings.ToLower(difficulty))
	if !d.Valid() {
		return nil, domain.InvalidInputf("unknown difficulty %q", difficulty)
	}
	return scenario.ByDifficulty(d), nil
}

// IsNotFound reports whether err means an unknown session or render job.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrRenderJobNotFound)
}
