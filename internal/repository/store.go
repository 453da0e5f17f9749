// Package repository defines the storage interface and its SQLite
// implementation. Only operational records are stored: render job outcomes
// and provider/session audit events. Conversation content is never written.
package repository

import (
	"context"

	"github.com/gezhip02/chat-english/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Render job operations
	SaveRenderJob(ctx context.Context, job *domain.RenderJob) error
	GetRenderJob(ctx context.Context, jobID string) (*domain.RenderJob, error)
	ListRenderJobs(ctx context.Context, sessionID string, limit int) ([]domain.RenderJob, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, filter EventFilter) ([]domain.Event, error)

	// Lifecycle
	Close() error
}

// EventFilter provides filtering options for events. An empty SessionID
// matches every session.
type EventFilter struct {
	SessionID string
	AfterTs   int64
	Types     []string
	Limit     int
}
