// Package ws serves the live conversation channel: learners' clients send
// finalized utterances and receive replies, render progress and provider
// fallback notices for their session.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/hub"
	"github.com/gezhip02/chat-english/internal/protocol"
	"github.com/gezhip02/chat-english/internal/service"
)

// Server handles websocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server. Zero timings fall back to defaults.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service) *Server {
	c := *cfg
	if c.WSReadTimeout <= 0 {
		c.WSReadTimeout = 60 * time.Second
	}
	if c.WSWriteTimeout <= 0 {
		c.WSWriteTimeout = 10 * time.Second
	}
	if c.WSPingInterval <= 0 {
		c.WSPingInterval = 30 * time.Second
	}
	return &Server{
		cfg:     &c,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	if s.cfg.WSMaxMessageSize > 0 {
		ws.SetReadLimit(s.cfg.WSMaxMessageSize)
	}

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		s.handleMessage(conn, message)
	}
}

func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeStartSession:
		s.handleStartSession(conn, data)
	case protocol.TypeUserTurn:
		s.handleUserTurn(conn, data)
	case protocol.TypeSetMock:
		s.handleSetMock(conn, data)
	case protocol.TypeEndSession:
		s.handleEndSession(conn, base)
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}
	s.hub.BindSession(conn, sessionID)

	s.hub.SendJSON(conn, protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			SessionID: sessionID,
		},
	})
	log.Printf("Hello handshake completed for session: %s", sessionID)
}

func (s *Server) handleStartSession(conn *hub.Connection, data []byte) {
	var msg protocol.StartSessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid start_session message")
		return
	}
	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := s.service.StartSession(ctx, sessionID, domain.StartSessionRequest{
		Scenario:   msg.Scenario,
		Difficulty: msg.Difficulty,
		UseMock:    msg.UseMock,
	})
	if err != nil {
		s.sendServiceError(conn, msg.RequestID, err)
		return
	}

	s.hub.SendJSON(conn, protocol.SessionStartedMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeSessionStarted,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			SessionID: sessionID,
		},
		Scenario:   resp.Scenario,
		Difficulty: resp.Difficulty,
		Greeting:   resp.Greeting,
	})
}

// handleUserTurn runs the turn off the read loop. The reply, render
// progress and the video URL reach the client through the session
// broadcast.
func (s *Server) handleUserTurn(conn *hub.Connection, data []byte) {
	var msg protocol.UserTurnMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid user_turn message")
		return
	}
	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout(msg.Render))
		defer cancel()

		_, err := s.service.SubmitTurn(ctx, sessionID, domain.TurnRequest{Text: msg.Text, Render: msg.Render})
		if err != nil {
			log.Printf("WARN: turn failed for session %s: %v", sessionID, err)
			s.sendServiceError(conn, msg.RequestID, err)
		}
	}()
}

func (s *Server) turnTimeout(render bool) time.Duration {
	timeout := s.cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timeout += 5 * time.Second
	if render {
		timeout += s.cfg.RenderPollInterval*time.Duration(s.cfg.RenderMaxAttempts) + 10*time.Second
	}
	return timeout
}

func (s *Server) handleSetMock(conn *hub.Connection, data []byte) {
	var msg protocol.SetMockMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid set_mock message")
		return
	}
	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}
	if err := s.service.SetUseMock(context.Background(), sessionID, msg.UseMock); err != nil {
		s.sendServiceError(conn, msg.RequestID, err)
	}
}

func (s *Server) handleEndSession(conn *hub.Connection, msg protocol.BaseMessage) {
	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.service.EndSession(ctx, sessionID); err != nil {
		s.sendServiceError(conn, msg.RequestID, err)
	}
}

// errorCode maps service errors onto protocol error codes.
func errorCode(err error) string {
	var (
		timeoutErr *domain.RenderTimeoutError
		failedErr  *domain.RenderFailedError
		submitErr  *domain.RenderSubmitError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return protocol.ErrorCodeInvalidInput
	case errors.Is(err, domain.ErrSessionNotFound):
		return protocol.ErrorCodeSessionNotFound
	case errors.As(err, &timeoutErr):
		return protocol.ErrorCodeRenderTimeout
	case errors.As(err, &failedErr), errors.As(err, &submitErr):
		return protocol.ErrorCodeRenderFailed
	default:
		return protocol.ErrorCodeInternalError
	}
}

func (s *Server) sendServiceError(conn *hub.Connection, requestID string, err error) {
	s.sendError(conn, requestID, errorCode(err), err.Error())
}

func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	s.hub.SendJSON(conn, protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.SessionID(),
		},
		Code:    code,
		Message: message,
	})
}
