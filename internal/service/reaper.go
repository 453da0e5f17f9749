package service

import (
	"context"
	"log"
	"time"
)

// RunIdleSessionReaper ends sessions that have not seen a turn for longer
// than the configured idle timeout.
func (s *Service) RunIdleSessionReaper(ctx context.Context) {
	idle := s.cfg().SessionIdleTimeout
	if idle <= 0 {
		return
	}
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdleSessions(ctx, time.Now())
		}
	}
}

func (s *Service) sweepIdleSessions(ctx context.Context, now time.Time) {
	idle := s.cfg().SessionIdleTimeout
	cutoff := now.Add(-idle).UnixMilli()

	s.sessMu.RLock()
	var expired []string
	for id, e := range s.sessions {
		if e.lastActive.Load() < cutoff {
			expired = append(expired, id)
		}
	}
	s.sessMu.RUnlock()

	for _, id := range expired {
		sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.endSession(sweepCtx, id, "idle timeout"); err != nil && !IsNotFound(err) {
			log.Printf("WARN: failed to end idle session %s: %v", id, err)
		}
		cancel()
	}
	if len(expired) > 0 {
		log.Printf("Ended %d idle sessions", len(expired))
	}
}
