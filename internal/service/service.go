// Package service wires sessions, the provider registry, avatar rendering,
// the turn policy and the audit store behind one explicit object shared by
// every transport.
package service

import (
	"context"
	"log"
	"sync"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/metrics"
	"github.com/gezhip02/chat-english/internal/orchestrator"
	"github.com/gezhip02/chat-english/internal/render"
	"github.com/gezhip02/chat-english/internal/repository"
	"github.com/gezhip02/chat-english/policy"
)

// Broadcaster pushes a JSON message to every live connection bound to a
// session. The websocket hub implements it.
type Broadcaster interface {
	BroadcastJSON(sessionID string, v interface{}) error
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Store        repository.Store
	Orchestrator *orchestrator.Orchestrator
	Vendor       render.Vendor
	RenderOpts   []render.Option
	Metrics      *metrics.Metrics
	Policy       *policy.Engine
	Config       *config.Config
}

// Service is the application core.
type Service struct {
	store        repository.Store
	orch         *orchestrator.Orchestrator
	renderer     *render.Controller
	metrics      *metrics.Metrics
	policyEngine *policy.Engine

	cfgMu  sync.RWMutex
	config *config.Config
	// base is the env-derived configuration providers files are merged onto.
	base config.Config

	sessMu   sync.RWMutex
	sessions map[string]*sessionEntry

	notifyMu    sync.RWMutex
	broadcaster Broadcaster
}

// New creates the service and subscribes it to registry events.
func New(deps Deps) *Service {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	s := &Service{
		store:        deps.Store,
		orch:         deps.Orchestrator,
		metrics:      deps.Metrics,
		policyEngine: deps.Policy,
		config:       cfg,
		base:         *cfg,
		sessions:     make(map[string]*sessionEntry),
	}
	s.base.Providers = cfg.ProviderSnapshot()
	if s.orch == nil {
		s.orch = orchestrator.New(orchestrator.WithMetrics(deps.Metrics))
	}

	opts := []render.Option{
		render.WithMetrics(deps.Metrics),
		render.WithProgress(s.onRenderProgress),
	}
	if cfg.RenderPollInterval > 0 && cfg.RenderMaxAttempts > 0 {
		opts = append(opts, render.WithPolicy(render.Policy{
			Interval:    cfg.RenderPollInterval,
			MaxAttempts: cfg.RenderMaxAttempts,
		}))
	}
	opts = append(opts, deps.RenderOpts...)
	if deps.Vendor != nil {
		s.renderer = render.NewController(deps.Vendor, opts...)
	}

	s.orch.Observe(s.onProviderEvent)
	return s
}

// SetBroadcaster attaches the live channel. Until it is set, notifications
// are dropped.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.notifyMu.Lock()
	s.broadcaster = b
	s.notifyMu.Unlock()
}

// Orchestrator exposes the provider registry.
func (s *Service) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

func (s *Service) cfg() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.config
}

// notify sends v to the session's live connections, if any.
func (s *Service) notify(sessionID string, v interface{}) {
	if sessionID == "" {
		return
	}
	s.notifyMu.RLock()
	b := s.broadcaster
	s.notifyMu.RUnlock()
	if b == nil {
		return
	}
	if err := b.BroadcastJSON(sessionID, v); err != nil {
		log.Printf("WARN: failed to notify session %s: %v", sessionID, err)
	}
}

// Shutdown ends every open session so in-flight renders stop polling.
func (s *Service) Shutdown(ctx context.Context) {
	s.sessMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessMu.RUnlock()

	for _, id := range ids {
		_ = s.endSession(ctx, id, "server shutdown")
	}
}

// Metrics returns the Prometheus instruments, possibly nil.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}
