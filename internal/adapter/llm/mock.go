package llm

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/scenario"
)

// MockModel is the model name reported by mock replies.
const MockModel = "mock-model"

// DefaultMockDelay emulates network latency.
const DefaultMockDelay = 500 * time.Millisecond

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the wall-clock SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MockAdapter answers from keyword rules and never fails except on context
// cancellation.
type MockAdapter struct {
	delay time.Duration
	sleep SleepFunc

	mu       sync.RWMutex
	scenario string

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ Adapter = (*MockAdapter)(nil)

// NewMock creates the mock adapter.
func NewMock(delay time.Duration) *MockAdapter {
	return &MockAdapter{
		delay: delay,
		sleep: ContextSleep,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSleeper replaces the delay function; tests pass a no-op.
func (m *MockAdapter) WithSleeper(sleep SleepFunc) *MockAdapter {
	m.sleep = sleep
	return m
}

// WithRand fixes the random source used for generic replies.
func (m *MockAdapter) WithRand(rng *rand.Rand) *MockAdapter {
	m.rngMu.Lock()
	m.rng = rng
	m.rngMu.Unlock()
	return m
}

func (m *MockAdapter) ID() string { return config.ProviderMock }

func (m *MockAdapter) Configured() bool { return true }

func (m *MockAdapter) Info() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:          config.ProviderMock,
		DisplayName: "Mock (offline)",
		IsFree:      true,
		IsAvailable: true,
	}
}

// SetScenario sets the fallback scenario used when a request carries none.
func (m *MockAdapter) SetScenario(s string) {
	m.mu.Lock()
	m.scenario = s
	m.mu.Unlock()
}

// Scenario returns the fallback scenario.
func (m *MockAdapter) Scenario() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scenario
}

func (m *MockAdapter) Probe(ctx context.Context) bool {
	return ctx.Err() == nil
}

// Generate replies to the latest user utterance, defaulting to "Hello".
func (m *MockAdapter) Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	if err := m.sleep(ctx, m.delay); err != nil {
		return nil, err
	}

	utterance := lastUserContent(messages)
	if utterance == "" {
		utterance = "Hello"
	}
	name, ok := ScenarioFrom(ctx)
	if !ok {
		name = m.Scenario()
	}

	m.rngMu.Lock()
	reply := scenario.MockReply(name, utterance, m.rng)
	m.rngMu.Unlock()

	return &domain.ProviderResponse{Content: reply, Model: MockModel, ProviderID: config.ProviderMock}, nil
}
