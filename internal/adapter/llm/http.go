package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gezhip02/chat-english/internal/domain"
)

// httpBase holds what every vendor HTTP adapter shares.
type httpBase struct {
	id          string
	displayName string
	free        bool
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func (b *httpBase) ID() string { return b.id }

func (b *httpBase) Configured() bool { return b.apiKey != "" }

func (b *httpBase) Info() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:          b.id,
		DisplayName: b.displayName,
		IsFree:      b.free,
		IsAvailable: b.Configured(),
	}
}

// Model returns the configured model name.
func (b *httpBase) Model() string { return b.model }

// postJSON sends body to url and returns the raw response. Transport failures
// become ProviderErrors unless ctx itself is done.
func (b *httpBase) postJSON(ctx context.Context, url string, body interface{}, setHeaders func(*http.Request)) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			return 0, nil, &domain.ProviderError{ProviderID: b.id, Detail: "rate limited: " + err.Error()}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setHeaders(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &domain.ProviderError{ProviderID: b.id, Detail: "failed to send request: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &domain.ProviderError{ProviderID: b.id, Status: resp.StatusCode, Detail: "failed to read response: " + err.Error()}
	}
	return resp.StatusCode, respBody, nil
}

func (b *httpBase) malformed(status int, err error) error {
	return &domain.ProviderError{ProviderID: b.id, Status: status, Detail: "malformed response: " + err.Error()}
}

func (b *httpBase) emptyCompletion(status int) error {
	return &domain.ProviderError{ProviderID: b.id, Status: status, Detail: "empty completion"}
}

func trimBaseURL(u, fallback string) string {
	if u == "" {
		u = fallback
	}
	return strings.TrimSuffix(u, "/")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
