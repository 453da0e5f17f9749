// Package orchestrator owns the provider registry: availability tracking,
// the active-provider pointer and the one-shot degrade to mock.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/metrics"
)

// Event describes a registry state change.
type Event struct {
	Type      domain.EventType
	From      string
	To        string
	Available bool
	Reason    string
	At        time.Time
}

// Observer is notified of registry events. ctx is the context of the call
// that caused the event.
type Observer func(ctx context.Context, ev Event)

type entry struct {
	adapter   llm.Adapter
	available bool
}

// Orchestrator is the process-wide provider registry. The lock guards the
// entry table and the active pointer only; it is never held across adapter
// I/O.
type Orchestrator struct {
	mu        sync.RWMutex
	entries   []*entry
	byID      map[string]*entry
	active    string
	preferred string
	degraded  bool

	mock        *llm.MockAdapter
	adapterOpts llm.Options
	metrics     *metrics.Metrics
	observers   []Observer
	tracer      trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMock replaces the default mock adapter.
func WithMock(m *llm.MockAdapter) Option {
	return func(o *Orchestrator) { o.mock = m }
}

// WithAdapterOptions sets the transport options used by Configure.
func WithAdapterOptions(opts llm.Options) Option {
	return func(o *Orchestrator) { o.adapterOpts = opts }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithObserver registers an event observer.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// New creates a registry holding only the mock provider.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tracer: otel.Tracer("github.com/gezhip02/chat-english/internal/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mock == nil {
		o.mock = llm.NewMock(llm.DefaultMockDelay)
	}
	o.Install(config.ProviderMock, nil)
	return o
}

// Configure builds adapters from provider blocks and installs them.
func (o *Orchestrator) Configure(mode, defaultID string, providers map[string]config.ProviderConfig) {
	o.Install(defaultID, llm.Build(mode, providers, o.adapterOpts))
}

// Install replaces the registered providers. Adapters without credentials
// are skipped, the mock is always registered last. Newly registered entries
// start available. The active provider is defaultID if usable, else the
// first available entry.
func (o *Orchestrator) Install(defaultID string, adapters []llm.Adapter) {
	entries := make([]*entry, 0, len(adapters)+1)
	byID := make(map[string]*entry, len(adapters)+1)
	for _, a := range adapters {
		if a == nil || a.ID() == config.ProviderMock || !a.Configured() {
			continue
		}
		if _, dup := byID[a.ID()]; dup {
			continue
		}
		e := &entry{adapter: a, available: true}
		entries = append(entries, e)
		byID[a.ID()] = e
	}
	mockEntry := &entry{adapter: o.mock, available: true}
	entries = append(entries, mockEntry)
	byID[config.ProviderMock] = mockEntry

	active := config.ProviderMock
	if e, ok := byID[defaultID]; ok && e.available {
		active = defaultID
	} else {
		for _, e := range entries {
			if e.available {
				active = e.adapter.ID()
				break
			}
		}
	}

	o.mu.Lock()
	o.entries = entries
	o.byID = byID
	o.active = active
	o.preferred = active
	o.degraded = false
	o.mu.Unlock()

	log.Printf("Providers registered: %d, active: %s", len(entries), active)
}

// List returns every registered provider in registration order.
func (o *Orchestrator) List() []domain.ProviderDescriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.ProviderDescriptor, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, describe(e))
	}
	return out
}

// ListAvailable returns the providers currently marked available.
func (o *Orchestrator) ListAvailable() []domain.ProviderDescriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.ProviderDescriptor, 0, len(o.entries))
	for _, e := range o.entries {
		if e.available {
			out = append(out, describe(e))
		}
	}
	return out
}

// Active returns the descriptor of the active provider.
func (o *Orchestrator) Active() domain.ProviderDescriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return describe(o.byID[o.active])
}

// Degraded reports whether the registry fell back to mock after a failure.
func (o *Orchestrator) Degraded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.degraded
}

// SetActive switches the active provider. It succeeds only for a registered
// and available provider.
func (o *Orchestrator) SetActive(id string) bool {
	o.mu.Lock()
	e, ok := o.byID[id]
	if !ok || !e.available {
		o.mu.Unlock()
		return false
	}
	from := o.active
	o.active = id
	o.preferred = id
	o.degraded = false
	o.mu.Unlock()

	if from != id {
		log.Printf("Active provider switched: %s -> %s", from, id)
		o.notify(context.Background(), Event{Type: domain.EventTypeProviderSwitch, From: from, To: id, Available: true})
	}
	return true
}

// SetScenario sets the mock adapter's fallback scenario.
func (o *Orchestrator) SetScenario(s string) {
	o.mock.SetScenario(s)
}

// Generate runs the active provider. Any adapter failure marks it
// unavailable, switches active to mock and answers with exactly one mock
// call. Only empty input and context cancellation reach the caller.
func (o *Orchestrator) Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	if len(messages) == 0 {
		return nil, domain.InvalidInputf("message list is empty")
	}

	o.mu.RLock()
	e := o.byID[o.active]
	available := e.available
	o.mu.RUnlock()
	id := e.adapter.ID()

	ctx, span := o.tracer.Start(ctx, "orchestrator.Generate", trace.WithAttributes(attribute.String("provider", id)))
	defer span.End()

	if id == config.ProviderMock {
		return o.generateMock(ctx, messages)
	}
	if !available {
		o.degrade(ctx, e, "provider marked unavailable")
		return o.generateMock(ctx, messages)
	}

	start := time.Now()
	resp, err := e.adapter.Generate(ctx, messages)
	if err == nil {
		o.metrics.ObserveGenerate(id, "ok", time.Since(start))
		return resp, nil
	}
	if ctx.Err() != nil {
		o.metrics.ObserveGenerate(id, "cancelled", time.Since(start))
		return nil, ctx.Err()
	}

	o.metrics.ObserveGenerate(id, "error", time.Since(start))
	span.RecordError(err)
	o.degrade(ctx, e, err.Error())
	return o.generateMock(ctx, messages)
}

// GenerateMock answers from the mock adapter without touching the active
// pointer.
func (o *Orchestrator) GenerateMock(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	if len(messages) == 0 {
		return nil, domain.InvalidInputf("message list is empty")
	}
	return o.generateMock(ctx, messages)
}

func (o *Orchestrator) generateMock(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	start := time.Now()
	resp, err := o.mock.Generate(ctx, messages)
	if err != nil {
		o.metrics.ObserveGenerate(config.ProviderMock, "cancelled", time.Since(start))
		trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())
		return nil, err
	}
	o.metrics.ObserveGenerate(config.ProviderMock, "ok", time.Since(start))
	return resp, nil
}

// degrade marks e unavailable and moves active to mock. When e was replaced
// by a concurrent Install, the new table is left untouched.
func (o *Orchestrator) degrade(ctx context.Context, e *entry, reason string) {
	id := e.adapter.ID()
	o.mu.Lock()
	if o.byID[id] == e {
		e.available = false
		if o.active == id {
			o.active = config.ProviderMock
			o.degraded = true
		}
	}
	o.mu.Unlock()

	log.Printf("WARN: provider %s failed, falling back to mock: %s", id, reason)
	o.metrics.IncFallback(id)
	o.notify(ctx, Event{Type: domain.EventTypeProviderFallback, From: id, To: config.ProviderMock, Reason: reason})
}

// Observe registers an observer after construction.
func (o *Orchestrator) Observe(fn Observer) {
	o.mu.Lock()
	o.observers = append(o.observers, fn)
	o.mu.Unlock()
}

func (o *Orchestrator) notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	o.mu.RLock()
	observers := o.observers
	o.mu.RUnlock()
	for _, fn := range observers {
		fn(ctx, ev)
	}
}

func describe(e *entry) domain.ProviderDescriptor {
	d := e.adapter.Info()
	d.IsAvailable = e.available
	return d
}

// isCancellation reports whether err stems from the caller's context.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
