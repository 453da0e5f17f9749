// Package render drives an asynchronous avatar video job from submission to
// completion, failure or timeout.
package render

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/metrics"
)

// Renderer status strings.
const (
	StatusDone  = "done"
	StatusError = "error"
)

// Defaults for the polling loop.
const (
	DefaultInterval    = 1000 * time.Millisecond
	DefaultMaxAttempts = 20
)

// TalkStatus is one renderer status response.
type TalkStatus struct {
	Status    string
	ResultURL string
	Detail    string
}

// Vendor is the rendering service.
type Vendor interface {
	CreateTalk(ctx context.Context, text, sourceURL string) (string, error)
	GetTalk(ctx context.Context, id string) (*TalkStatus, error)
}

// Clock provides cancellable sleeping and the current time.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WallClock is the real-time Clock.
var WallClock Clock = wallClock{}

// Policy bounds the polling loop.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy polls once a second, at most twenty times.
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

// normalized replaces non-positive fields with the defaults.
func (p Policy) normalized() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// Request describes a job to render.
type Request struct {
	SessionID string
	Text      string
	SourceURL string
}

// ProgressFunc is called after every job state change.
type ProgressFunc func(ctx context.Context, job *domain.RenderJob)

// Controller submits and polls render jobs.
type Controller struct {
	vendor     Vendor
	clock      Clock
	policy     Policy
	metrics    *metrics.Metrics
	onProgress []ProgressFunc
	tracer     trace.Tracer
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the clock used between polls.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithPolicy overrides the default polling policy.
func WithPolicy(p Policy) Option {
	return func(ctl *Controller) { ctl.policy = p }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(ctl *Controller) { ctl.onProgress = append(ctl.onProgress, fn) }
}

// NewController creates a controller for vendor.
func NewController(vendor Vendor, opts ...Option) *Controller {
	c := &Controller{
		vendor: vendor,
		clock:  WallClock,
		policy: DefaultPolicy(),
		tracer: otel.Tracer("github.com/gezhip02/chat-english/internal/render"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy = c.policy.normalized()
	return c
}

// Policy returns the configured polling policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Submit creates the job at the renderer. Observers see it submitted, then
// pending; the returned job is pending.
func (c *Controller) Submit(ctx context.Context, req Request) (*domain.RenderJob, error) {
	if req.Text == "" {
		return nil, domain.InvalidInputf("render text is empty")
	}

	id, err := c.vendor.CreateTalk(ctx, req.Text, req.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var submitErr *domain.RenderSubmitError
		if errors.As(err, &submitErr) {
			return nil, submitErr
		}
		return nil, &domain.RenderSubmitError{Detail: err.Error()}
	}
	if id == "" {
		return nil, &domain.RenderSubmitError{Detail: "renderer returned no job id"}
	}

	now := c.clock.Now()
	job := &domain.RenderJob{
		JobID:           id,
		SessionID:       req.SessionID,
		SourceText:      req.Text,
		AvatarSourceURL: req.SourceURL,
		State:           domain.RenderStateSubmitted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	c.progress(ctx, job)

	job.State = domain.RenderStatePending
	c.progress(ctx, job)
	return job, nil
}

// Poll issues exactly one status request and updates job.
func (c *Controller) Poll(ctx context.Context, job *domain.RenderJob) (domain.RenderState, string, error) {
	job.AttemptCount++
	c.metrics.IncRenderPoll()

	status, err := c.vendor.GetTalk(ctx, job.JobID)
	job.UpdatedAt = c.clock.Now()
	if err != nil {
		if ctx.Err() != nil {
			return job.State, "", ctx.Err()
		}
		return c.fail(job, "status request failed", err)
	}

	switch status.Status {
	case StatusDone:
		if status.ResultURL == "" {
			return c.fail(job, "renderer reported done without a result url", nil)
		}
		job.State = domain.RenderStateDone
		job.ResultURL = status.ResultURL
		return job.State, job.ResultURL, nil
	case StatusError:
		detail := "renderer reported an error"
		if status.Detail != "" {
			detail += ": " + status.Detail
		}
		return c.fail(job, detail, nil)
	default:
		job.State = domain.RenderStatePending
		return job.State, "", nil
	}
}

func (c *Controller) fail(job *domain.RenderJob, detail string, cause error) (domain.RenderState, string, error) {
	job.State = domain.RenderStateFailed
	job.Error = detail
	return job.State, "", &domain.RenderFailedError{JobID: job.JobID, Detail: detail, Cause: cause}
}

// Run submits the job and polls until done, failed or the attempt budget is
// spent. Each attempt sleeps for the interval first. The job is returned with
// its final state even when err is non-nil, unless submission failed.
func (c *Controller) Run(ctx context.Context, req Request) (*domain.RenderJob, error) {
	return c.RunWithPolicy(ctx, req, c.policy)
}

// RunWithPolicy is Run with an explicit policy. Non-positive fields fall back
// to the defaults.
func (c *Controller) RunWithPolicy(ctx context.Context, req Request, p Policy) (*domain.RenderJob, error) {
	p = p.normalized()
	ctx, span := c.tracer.Start(ctx, "render.Run", trace.WithAttributes(attribute.String("session_id", req.SessionID)))
	defer span.End()

	job, err := c.Submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		c.metrics.IncRender("submit_failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("job_id", job.JobID))

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := c.clock.Sleep(ctx, p.Interval); err != nil {
			return job, err
		}

		state, _, err := c.Poll(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return job, err
			}
			log.Printf("WARN: render job %s failed: %v", job.JobID, err)
			span.RecordError(err)
			c.metrics.IncRender(string(domain.RenderStateFailed))
			c.progress(ctx, job)
			return job, err
		}
		c.progress(ctx, job)
		if state == domain.RenderStateDone {
			c.metrics.IncRender(string(domain.RenderStateDone))
			return job, nil
		}
	}

	job.State = domain.RenderStateTimedOut
	job.Error = "video generation timed out"
	job.UpdatedAt = c.clock.Now()
	log.Printf("WARN: render job %s timed out after %d attempts", job.JobID, job.AttemptCount)
	c.metrics.IncRender(string(domain.RenderStateTimedOut))
	c.progress(ctx, job)
	return job, &domain.RenderTimeoutError{JobID: job.JobID, Attempts: job.AttemptCount}
}

func (c *Controller) progress(ctx context.Context, job *domain.RenderJob) {
	for _, fn := range c.onProgress {
		snapshot := *job
		fn(ctx, &snapshot)
	}
}
