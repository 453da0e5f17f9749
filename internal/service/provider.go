package service

import (
	"context"
	"log"
	"time"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/orchestrator"
	"github.com/gezhip02/chat-english/internal/protocol"
)

// ProviderStatus is the registry view served to clients.
type ProviderStatus struct {
	Active    domain.ProviderDescriptor   `json:"active"`
	Degraded  bool                        `json:"degraded"`
	Providers []domain.ProviderDescriptor `json:"providers"`
}

// ListProviders returns every registered provider, or only the available
// ones.
func (s *Service) ListProviders(availableOnly bool) []domain.ProviderDescriptor {
	if availableOnly {
		return s.orch.ListAvailable()
	}
	return s.orch.List()
}

// ProviderStatus returns the active provider and the registry contents.
func (s *Service) ProviderStatus() ProviderStatus {
	return ProviderStatus{
		Active:    s.orch.Active(),
		Degraded:  s.orch.Degraded(),
		Providers: s.orch.List(),
	}
}

// SetActiveProvider switches the active provider.
func (s *Service) SetActiveProvider(ctx context.Context, id string) (domain.ProviderDescriptor, error) {
	if id == "" {
		return domain.ProviderDescriptor{}, domain.InvalidInputf("provider_id is required")
	}
	if !s.orch.SetActive(id) {
		return domain.ProviderDescriptor{}, domain.InvalidInputf("provider %s is not registered or not available", id)
	}
	return s.orch.Active(), nil
}

// ProbeProviders tests connectivity of every registered provider.
func (s *Service) ProbeProviders(ctx context.Context) map[string]bool {
	timeout := s.cfg().ProviderTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.orch.ProbeAll(ctx)
}

// Reload applies a providers file on top of the env configuration and
// reinstalls the registry.
func (s *Service) Reload(ctx context.Context, pf *config.ProvidersFile) {
	s.cfgMu.Lock()
	next := s.base
	next.Providers = s.base.ProviderSnapshot()
	next.Merge(pf)
	s.config = &next
	s.cfgMu.Unlock()

	s.orch.Configure(next.Mode, next.DefaultProvider, next.ProviderSnapshot())
	active := s.orch.Active()
	log.Printf("Configuration reloaded, active provider: %s", active.ID)

	if err := s.recordEvent(ctx, "", domain.EventTypeConfigReloaded, map[string]interface{}{
		"default":   next.DefaultProvider,
		"active":    active.ID,
		"providers": len(next.Providers),
	}); err != nil {
		log.Printf("WARN: failed to record config reload: %v", err)
	}
}

// onProviderEvent records registry events and tells the affected session
// when its reply was served by the mock after a failure.
func (s *Service) onProviderEvent(ctx context.Context, ev orchestrator.Event) {
	sessionID := sessionIDFrom(ctx)

	var payload interface{}
	switch ev.Type {
	case domain.EventTypeProviderProbe:
		payload = domain.ProbePayload{ProviderID: ev.From, Available: ev.Available}
	default:
		payload = domain.FallbackPayload{From: ev.From, To: ev.To, Reason: ev.Reason}
	}

	// The caller's context may already be cancelled; the audit write must
	// not depend on it.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.recordEvent(recCtx, sessionID, ev.Type, payload); err != nil {
		log.Printf("WARN: failed to record provider event %s: %v", ev.Type, err)
	}

	if ev.Type == domain.EventTypeProviderFallback {
		s.notify(sessionID, protocol.ProviderFallbackMessage{
			BaseMessage: protocol.BaseMessage{Type: protocol.TypeProviderFallback, Ts: ev.At.UnixMilli(), SessionID: sessionID},
			From:        ev.From,
			To:          ev.To,
			Reason:      ev.Reason,
		})
	}
}

// ReloadFromFile re-reads the configured providers file.
func (s *Service) ReloadFromFile(ctx context.Context) error {
	path := s.base.ProvidersFile
	if path == "" {
		return domain.InvalidInputf("no providers file configured")
	}
	pf, err := config.LoadProvidersFile(path)
	if err != nil {
		return err
	}
	s.Reload(ctx, pf)
	return nil
}
