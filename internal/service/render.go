package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/protocol"
	"github.com/gezhip02/chat-english/internal/render"
)

// Render produces a standalone avatar video for text.
func (s *Service) Render(ctx context.Context, req domain.RenderRequest) (*domain.RenderResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.InvalidInputf("text is required")
	}
	if s.renderer == nil {
		return nil, &domain.RenderSubmitError{Detail: "avatar rendering is not configured"}
	}
	sourceURL := req.SourceURL
	if sourceURL == "" {
		sourceURL = s.cfg().AvatarSourceURL
	}

	job, err := s.renderer.Run(ctx, render.Request{Text: text, SourceURL: sourceURL})
	if job == nil {
		return nil, err
	}
	return &domain.RenderResponse{ID: job.JobID, URL: job.ResultURL, Status: job.State}, err
}

// GetRenderJob returns a recorded render job.
func (s *Service) GetRenderJob(ctx context.Context, jobID string) (*domain.RenderJob, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRenderJobNotFound, jobID)
	}
	job, err := s.store.GetRenderJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRenderJobNotFound, jobID)
	}
	return job, nil
}

// ListRenderJobs returns recent render jobs of a session.
func (s *Service) ListRenderJobs(ctx context.Context, sessionID string, limit int) ([]domain.RenderJob, error) {
	if s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListRenderJobs(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}
	return jobs, nil
}

// onRenderProgress persists every job transition and streams it to the
// owning session.
func (s *Service) onRenderProgress(ctx context.Context, job *domain.RenderJob) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.SaveRenderJob(storeCtx, job); err != nil {
			log.Printf("WARN: failed to save render job %s: %v", job.JobID, err)
		}
	}

	now := time.Now().UnixMilli()
	s.notify(job.SessionID, protocol.RenderProgressMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeRenderProgress, Ts: now, SessionID: job.SessionID},
		JobID:       job.JobID,
		State:       job.State,
		Attempts:    job.AttemptCount,
		Error:       job.Error,
	})

	var eventType domain.EventType
	switch job.State {
	case domain.RenderStateDone:
		eventType = domain.EventTypeRenderDone
		s.notify(job.SessionID, protocol.VideoReadyMessage{
			BaseMessage: protocol.BaseMessage{Type: protocol.TypeVideoReady, Ts: now, SessionID: job.SessionID},
			JobID:       job.JobID,
			URL:         job.ResultURL,
		})
	case domain.RenderStateFailed:
		eventType = domain.EventTypeRenderFailed
	case domain.RenderStateTimedOut:
		eventType = domain.EventTypeRenderTimedOut
	default:
		return
	}

	if err := s.recordEvent(storeCtx, job.SessionID, eventType, map[string]interface{}{
		"job_id":   job.JobID,
		"attempts": job.AttemptCount,
		"error":    job.Error,
	}); err != nil {
		log.Printf("WARN: failed to record render event %s: %v", job.JobID, err)
	}
}
