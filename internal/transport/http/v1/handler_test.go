package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gezhip02/chat-english/internal/adapter/did"
	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/orchestrator"
	"github.com/gezhip02/chat-english/internal/render"
	"github.com/gezhip02/chat-english/internal/service"
	"github.com/gezhip02/chat-english/policy"
	"github.com/gezhip02/chat-english/tests/helpers"
)

type instantClock struct{}

func (instantClock) Now() time.Time                                   { return time.Now() }
func (instantClock) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	orch := orchestrator.New(orchestrator.WithMock(llm.NewMock(0)))
	svc := service.New(service.Deps{
		Store:        db,
		Orchestrator: orch,
		Vendor:       did.NewMockVendor(1),
		RenderOpts:   []render.Option{render.WithClock(instantClock{})},
		Policy:       policyEngine,
		Config:       &config.Config{MaxTurnChars: 100, RenderPollInterval: time.Millisecond, RenderMaxAttempts: 3},
	})
	h := NewHandler(svc)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func startSession(t *testing.T, e *echo.Echo) domain.StartSessionResponse {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/v1/sessions", `{"scenario":"weather","difficulty":"beginner"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp domain.StartSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	_, e := newTestHandler(t)
	rec := doJSON(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider":"mock"`)
}

func TestListScenarios(t *testing.T) {
	_, e := newTestHandler(t)

	rec := doJSON(t, e, http.MethodGet, "/v1/scenarios?difficulty=beginner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Scenarios []domain.Scenario `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Scenarios)
	for _, s := range resp.Scenarios {
		assert.Equal(t, domain.DifficultyBeginner, s.Difficulty)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/scenarios?difficulty=expert", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	_, e := newTestHandler(t)
	started := startSession(t, e)
	assert.Equal(t, "Weather Talk", started.Scenario)
	assert.NotEmpty(t, started.Greeting)

	rec := doJSON(t, e, http.MethodGet, "/v1/sessions/"+started.SessionID+"/greeting", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), started.Greeting)

	rec = doJSON(t, e, http.MethodPost, "/v1/sessions/"+started.SessionID+"/turns", `{"text":"It is sunny today"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var turn domain.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, config.ProviderMock, turn.ProviderID)
	assert.NotEmpty(t, turn.Reply)

	rec = doJSON(t, e, http.MethodGet, "/v1/sessions/"+started.SessionID+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var log struct {
		Messages []domain.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	require.Len(t, log.Messages, 3)
	assert.Equal(t, domain.RoleSystem, log.Messages[0].Role)

	rec = doJSON(t, e, http.MethodGet, "/v1/sessions/"+started.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"turns":1`)

	rec = doJSON(t, e, http.MethodPut, "/v1/sessions/"+started.SessionID+"/mock", `{"use_mock":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, "/v1/sessions/"+started.SessionID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/v1/sessions/"+started.SessionID+"/messages", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitTurnErrors(t *testing.T) {
	_, e := newTestHandler(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/sessions/sess_missing/turns", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	started := startSession(t, e)
	rec = doJSON(t, e, http.MethodPost, "/v1/sessions/"+started.SessionID+"/turns", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/v1/sessions", `{"scenario":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTurnWithRender(t *testing.T) {
	_, e := newTestHandler(t)
	started := startSession(t, e)

	rec := doJSON(t, e, http.MethodPost, "/v1/sessions/"+started.SessionID+"/turns", `{"text":"Is it raining?","render":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var turn domain.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.NotEmpty(t, turn.VideoURL)
	assert.NotEmpty(t, turn.RenderJob)

	rec = doJSON(t, e, http.MethodGet, "/v1/renders/"+turn.RenderJob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"done"`)

	rec = doJSON(t, e, http.MethodGet, "/v1/sessions/"+started.SessionID+"/renders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), turn.RenderJob)
}

func TestCreateRender(t *testing.T) {
	_, e := newTestHandler(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/renders", `{"text":"Hello learner"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.RenderStateDone, resp.Status)
	assert.NotEmpty(t, resp.URL)

	rec = doJSON(t, e, http.MethodPost, "/v1/renders", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/v1/renders/tlk_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviders(t *testing.T) {
	_, e := newTestHandler(t)

	rec := doJSON(t, e, http.MethodGet, "/v1/providers?available=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"mock"`)

	rec = doJSON(t, e, http.MethodGet, "/v1/providers/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded":false`)

	rec = doJSON(t, e, http.MethodPut, "/v1/providers/active", `{"provider_id":"openai"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPut, "/v1/providers/active", `{"provider_id":"mock"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMockChat(t *testing.T) {
	_, e := newTestHandler(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/mock-chat", `{"scenario":"food","messages":[{"role":"user","content":"I love pizza"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"provider_id":"mock"`)

	rec = doJSON(t, e, http.MethodPost, "/v1/mock-chat", `{"scenario":"food","messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.InvalidInputf("empty"), http.StatusBadRequest},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{&domain.RenderTimeoutError{JobID: "j", Attempts: 20}, http.StatusGatewayTimeout},
		{&domain.RenderFailedError{JobID: "j", Detail: "bad"}, http.StatusBadGateway},
		{&domain.RenderSubmitError{Status: 401, Detail: "denied"}, http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, msg := errorStatus(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}
