package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
)

// Probe checks one provider and records the result. A successful probe of
// the preferred provider while degraded makes it active again. A failed probe
// of the active provider degrades to mock.
func (o *Orchestrator) Probe(ctx context.Context, id string) bool {
	o.mu.RLock()
	e, ok := o.byID[id]
	o.mu.RUnlock()
	if !ok {
		return false
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.Probe", trace.WithAttributes(attribute.String("provider", id)))
	defer span.End()

	healthy := e.adapter.Probe(ctx)
	if !healthy && isCancellation(ctx, ctx.Err()) {
		return false
	}
	o.metrics.IncProbe(id, healthy)

	o.mu.Lock()
	if o.byID[id] != e {
		// Replaced by a concurrent Install.
		o.mu.Unlock()
		return healthy
	}
	e.available = healthy
	restored, degradedNow := false, false
	if healthy && o.degraded && id == o.preferred {
		o.active = id
		o.degraded = false
		restored = true
	}
	if !healthy && o.active == id {
		o.active = config.ProviderMock
		o.degraded = true
		degradedNow = true
	}
	o.mu.Unlock()

	o.notify(ctx, Event{Type: domain.EventTypeProviderProbe, From: id, To: id, Available: healthy})
	if restored {
		log.Printf("Provider %s recovered, active again", id)
		o.notify(ctx, Event{Type: domain.EventTypeProviderSwitch, From: config.ProviderMock, To: id, Available: true, Reason: "probe recovered"})
	}
	if degradedNow {
		log.Printf("WARN: active provider %s failed probe, falling back to mock", id)
		o.metrics.IncFallback(id)
		o.notify(ctx, Event{Type: domain.EventTypeProviderFallback, From: id, To: config.ProviderMock, Reason: "probe failed"})
	}
	return healthy
}

// ProbeAll probes every registered provider concurrently.
func (o *Orchestrator) ProbeAll(ctx context.Context) map[string]bool {
	o.mu.RLock()
	ids := make([]string, 0, len(o.entries))
	for _, e := range o.entries {
		ids = append(ids, e.adapter.ID())
	}
	o.mu.RUnlock()

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]bool, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ok := o.Probe(ctx, id)
			mu.Lock()
			results[id] = ok
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

// RunHealthMonitor periodically re-probes configured providers that are
// marked unavailable so that a recovered vendor comes back without a restart.
func (o *Orchestrator) RunHealthMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepUnavailable(ctx, interval)
		}
	}
}

func (o *Orchestrator) sweepUnavailable(ctx context.Context, interval time.Duration) {
	o.mu.RLock()
	var ids []string
	for _, e := range o.entries {
		if !e.available && e.adapter.Configured() {
			ids = append(ids, e.adapter.ID())
		}
	}
	o.mu.RUnlock()

	for _, id := range ids {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		ok := o.Probe(probeCtx, id)
		cancel()
		if !ok {
			log.Printf("WARN: provider %s still unavailable", id)
		}
	}
}
