package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gezhip02/chat-english/internal/adapter/did"
	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/hub"
	"github.com/gezhip02/chat-english/internal/orchestrator"
	"github.com/gezhip02/chat-english/internal/protocol"
	"github.com/gezhip02/chat-english/internal/render"
	"github.com/gezhip02/chat-english/internal/service"
	"github.com/gezhip02/chat-english/policy"
	"github.com/gezhip02/chat-english/tests/helpers"
)

type instantClock struct{}

func (instantClock) Now() time.Time                                   { return time.Now() }
func (instantClock) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	cfg := &config.Config{
		MaxTurnChars:       200,
		RenderPollInterval: time.Millisecond,
		RenderMaxAttempts:  3,
	}
	svc := service.New(service.Deps{
		Store:        helpers.NewTestSQLiteStore(t),
		Orchestrator: orchestrator.New(orchestrator.WithMock(llm.NewMock(0).WithSleeper(noSleep))),
		Vendor:       did.NewMockVendor(1),
		RenderOpts:   []render.Option{render.WithClock(instantClock{})},
		Policy:       engine,
		Config:       cfg,
	})
	h := hub.New()
	go h.Run(ctx)
	svc.SetBroadcaster(h)

	e := echo.New()
	e.GET("/ws", NewServer(cfg, h, svc).HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestConversationOverWebSocket(t *testing.T) {
	conn := dial(t, newTestServer(t))

	send(t, conn, protocol.HelloMessage{BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello}})
	ack := readUntil(t, conn, protocol.TypeHelloAck)
	sessionID, _ := ack["session_id"].(string)
	require.True(t, strings.HasPrefix(sessionID, "sess_"))

	send(t, conn, protocol.StartSessionMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeStartSession},
		Scenario:    "coffee-shop",
		Difficulty:  domain.DifficultyBeginner,
	})
	started := readUntil(t, conn, protocol.TypeSessionStarted)
	assert.Equal(t, sessionID, started["session_id"])
	assert.NotEmpty(t, started["greeting"])

	send(t, conn, protocol.UserTurnMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeUserTurn},
		Text:        "One latte please",
		Render:      true,
	})
	reply := readUntil(t, conn, protocol.TypeReply)
	assert.Equal(t, config.ProviderMock, reply["provider_id"])
	assert.NotEmpty(t, reply["reply"])

	video := readUntil(t, conn, protocol.TypeVideoReady)
	assert.Contains(t, video["url"], "mock://talks/")

	send(t, conn, protocol.EndSessionMessage{BaseMessage: protocol.BaseMessage{Type: protocol.TypeEndSession}})
	readUntil(t, conn, protocol.TypeSessionEnded)
}

func TestWebSocketErrors(t *testing.T) {
	conn := dial(t, newTestServer(t))

	send(t, conn, protocol.UserTurnMessage{BaseMessage: protocol.BaseMessage{Type: protocol.TypeUserTurn}, Text: "hi"})
	msg := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeSessionRequired, msg["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg = readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, msg["code"])

	send(t, conn, map[string]string{"type": "nope"})
	msg = readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, msg["code"])

	send(t, conn, protocol.HelloMessage{BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello, SessionID: "sess_fixed"}})
	readUntil(t, conn, protocol.TypeHelloAck)

	send(t, conn, protocol.UserTurnMessage{BaseMessage: protocol.BaseMessage{Type: protocol.TypeUserTurn}, Text: "hi"})
	msg = readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeSessionNotFound, msg["code"])
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, protocol.ErrorCodeInvalidInput, errorCode(domain.InvalidInputf("x")))
	assert.Equal(t, protocol.ErrorCodeRenderTimeout, errorCode(&domain.RenderTimeoutError{JobID: "j"}))
	assert.Equal(t, protocol.ErrorCodeRenderFailed, errorCode(&domain.RenderSubmitError{Detail: "x"}))
	assert.Equal(t, protocol.ErrorCodeInternalError, errorCode(context.Canceled))
}
