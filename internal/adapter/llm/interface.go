// Package llm provides the text-generation backends behind one contract.
package llm

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gezhip02/chat-english/internal/domain"
)

// Adapter defines the contract every text-generation backend satisfies.
type Adapter interface {
	// ID is the registry key, e.g. "openai".
	ID() string

	// Info returns the static descriptor. IsAvailable mirrors Configured;
	// live availability is tracked by the orchestrator.
	Info() domain.ProviderDescriptor

	// Configured reports whether credentials are present.
	Configured() bool

	// Probe issues a minimal request and reports whether the vendor returned
	// a well-formed completion. It never returns an error.
	Probe(ctx context.Context) bool

	// Generate produces the next assistant message for an ordered log. It
	// fails with domain.ErrProviderUnavailable or *domain.ProviderError and
	// never falls back on its own.
	Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error)
}

// Options carries transport settings shared by the HTTP adapters.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// RatePerSec throttles outbound vendor calls per adapter. Zero disables.
	RatePerSec int
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) limiter() *rate.Limiter {
	if o.RatePerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.RatePerSec), o.RatePerSec)
}

type scenarioKey struct{}

// WithScenario attaches the conversation scenario to a generate request so
// the mock adapter can pick matching replies.
func WithScenario(ctx context.Context, scenario string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, scenario)
}

// ScenarioFrom returns the scenario attached by WithScenario.
func ScenarioFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(scenarioKey{}).(string)
	return s, ok && s != ""
}

// lastUserContent returns the most recent user utterance, or "".
func lastUserContent(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
