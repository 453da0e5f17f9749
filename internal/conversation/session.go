// Package conversation holds the per-scenario message log and drives one
// turn at a time through the provider registry.
package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/scenario"
)

// Generator is the part of the orchestrator a session needs.
type Generator interface {
	Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error)
	GenerateMock(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error)
	SetScenario(s string)
}

// Session is an ordered conversation log scoped to one scenario and
// difficulty. The log always has the shape system,(user,assistant)*.
type Session struct {
	gen Generator

	// turn admits one turn at a time; mu only guards the fields below.
	turn chan struct{}

	mu         sync.RWMutex
	messages   []domain.Message
	name       string
	difficulty domain.Difficulty
	useMock    bool
	started    bool
	epoch      uint64
}

// New creates an empty, unstarted session.
func New(gen Generator) *Session {
	return &Session{
		gen:  gen,
		turn: make(chan struct{}, 1),
	}
}

// Start resets the log to the single system instruction for the pair and
// propagates the scenario to the generator.
func (s *Session) Start(name string, difficulty domain.Difficulty) {
	title := scenario.Title(name)

	s.mu.Lock()
	s.messages = []domain.Message{{
		Role:    domain.RoleSystem,
		Content: scenario.SystemPrompt(title, difficulty),
	}}
	s.name = title
	s.difficulty = difficulty
	s.started = true
	s.epoch++
	s.mu.Unlock()

	s.gen.SetScenario(title)
}

// SubmitUserTurn appends text, generates the reply, appends it and returns
// its content.
func (s *Session) SubmitUserTurn(ctx context.Context, text string) (string, error) {
	resp, err := s.Turn(ctx, text)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Turn is SubmitUserTurn returning the full provider response. Turns on the
// same session are serialized; a failed or cancelled turn leaves the log as
// it was before the call.
func (s *Session) Turn(ctx context.Context, text string) (*domain.ProviderResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.InvalidInputf("utterance is empty")
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.turn }()

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, domain.InvalidInputf("session has not been started")
	}
	s.messages = append(s.messages, domain.Message{Role: domain.RoleUser, Content: text})
	snapshot := make([]domain.Message, len(s.messages))
	copy(snapshot, s.messages)
	epoch := s.epoch
	name := s.name
	useMock := s.useMock
	s.mu.Unlock()

	ctx = llm.WithScenario(ctx, name)
	var (
		resp *domain.ProviderResponse
		err  error
	)
	if useMock {
		resp, err = s.gen.GenerateMock(ctx, snapshot)
	} else {
		resp, err = s.gen.Generate(ctx, snapshot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// Ended or restarted while generating; the reply belongs to a log
		// that no longer exists.
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	if err != nil {
		s.messages = s.messages[:len(snapshot)-1]
		return nil, err
	}
	s.messages = append(s.messages, domain.Message{Role: domain.RoleAssistant, Content: resp.Content})
	return resp, nil
}

// InitialGreeting returns the opening line for the current pair. It is not
// appended to the log; callers display it and may render it.
func (s *Session) InitialGreeting() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scenario.Greeting(s.name, s.difficulty)
}

// End clears the log, scenario, difficulty and mock flag.
func (s *Session) End() {
	s.mu.Lock()
	s.messages = nil
	s.name = ""
	s.difficulty = ""
	s.useMock = false
	s.started = false
	s.epoch++
	s.mu.Unlock()
}

// Messages returns a copy of the log.
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetUseMock routes subsequent turns to the mock provider.
func (s *Session) SetUseMock(v bool) {
	s.mu.Lock()
	s.useMock = v
	s.mu.Unlock()
}

// UseMock reports the mock-mode flag.
func (s *Session) UseMock() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useMock
}

// Scenario returns the scenario title and difficulty.
func (s *Session) Scenario() (string, domain.Difficulty) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.difficulty
}

// Started reports whether Start has been called since the last End.
func (s *Session) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
