// Package did provides the D-ID talking-avatar renderer client.
package did

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/render"
)

const (
	defaultBaseURL   = "https://api.d-id.com"
	defaultVoiceID   = "en-US-JennyNeural"
	defaultDriverURL = "bank://lively"
)

// Client is the D-ID API client.
type Client struct {
	baseURL    string
	authHeader string
	voiceID    string
	driverURL  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ render.Vendor = (*Client)(nil)

// NewClient creates a D-ID client. apiKey is either "email:key", which is
// base64-encoded for Basic auth, or an already-encoded credential.
func NewClient(apiKey, baseURL string, timeout time.Duration, ratePerSec int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authHeader: AuthHeader(apiKey),
		voiceID:    defaultVoiceID,
		driverURL:  defaultDriverURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	if ratePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
	return c
}

// AuthHeader builds the Basic authorization header value.
func AuthHeader(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if strings.Contains(apiKey, ":") {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey))
	}
	return "Basic " + apiKey
}

// Configured reports whether an API key was provided.
func (c *Client) Configured() bool {
	return c.authHeader != ""
}

type createTalkRequest struct {
	SourceURL string     `json:"source_url"`
	Script    talkScript `json:"script"`
	Config    talkConfig `json:"config"`
	DriverURL string     `json:"driver_url,omitempty"`
}

type talkScript struct {
	Type     string        `json:"type"`
	Input    string        `json:"input"`
	Provider voiceProvider `json:"provider"`
}

type voiceProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id"`
}

type talkConfig struct {
	Stitch bool `json:"stitch"`
}

type talkResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
	Error     *struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

type errorResponse struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// CreateTalk submits a text-driven talk and returns its id.
func (c *Client) CreateTalk(ctx context.Context, text, sourceURL string) (string, error) {
	if !c.Configured() {
		return "", &domain.RenderSubmitError{Detail: "D-ID API key is missing"}
	}

	body := createTalkRequest{
		SourceURL: sourceURL,
		Script: talkScript{
			Type:     "text",
			Input:    text,
			Provider: voiceProvider{Type: "microsoft", VoiceID: c.voiceID},
		},
		Config:    talkConfig{Stitch: true},
		DriverURL: c.driverURL,
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/talks", body)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", &domain.RenderSubmitError{Status: status, Detail: errorDetail(respBody)}
	}

	var talk talkResponse
	if err := json.Unmarshal(respBody, &talk); err != nil {
		return "", &domain.RenderSubmitError{Status: status, Detail: "malformed response: " + err.Error()}
	}
	if talk.ID == "" {
		return "", &domain.RenderSubmitError{Status: status, Detail: "response has no talk id"}
	}
	return talk.ID, nil
}

// GetTalk fetches the status of a talk.
func (c *Client) GetTalk(ctx context.Context, id string) (*render.TalkStatus, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/talks/"+id, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("D-ID status error [%d]: %s", status, errorDetail(respBody))
	}

	var talk talkResponse
	if err := json.Unmarshal(respBody, &talk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal talk status: %w", err)
	}
	ts := &render.TalkStatus{Status: talk.Status, ResultURL: talk.ResultURL}
	if talk.Error != nil {
		ts.Detail = talk.Error.Description
	}
	return ts, nil
}

// Ping checks credentials against a cheap listing endpoint.
func (c *Client) Ping(ctx context.Context) error {
	status, respBody, err := c.do(ctx, http.MethodGet, "/presentations", nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("D-ID ping failed [%d]: %s", status, errorDetail(respBody))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func errorDetail(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Description != "":
			return e.Description
		case e.Message != "":
			return e.Message
		}
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
