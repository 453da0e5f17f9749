// Package rpc exposes session and provider operations over JSON-RPC for
// internal callers such as the chat CLI and batch tooling.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/service"
)

// Server exposes internal RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the conversation service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc, timeout: 60 * time.Second}
	if err := rpcServer.RegisterName("Chat", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("RPC accept error: %v", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Chat RPC methods.
type Handler struct {
	service *service.Service
	timeout time.Duration
}

// StartSessionArgs wraps an optional session id with the start payload.
type StartSessionArgs struct {
	SessionID string                     `json:"session_id"`
	Request   domain.StartSessionRequest `json:"request"`
}

// SubmitTurnArgs wraps a session id with one utterance.
type SubmitTurnArgs struct {
	SessionID string             `json:"session_id"`
	Request   domain.TurnRequest `json:"request"`
}

// EndSessionArgs identifies a session to end.
type EndSessionArgs struct {
	SessionID string `json:"session_id"`
}

// ProbeArgs is empty; net/rpc requires an argument type.
type ProbeArgs struct{}

// ProbeReply maps provider ids to their probe outcome.
type ProbeReply struct {
	Results map[string]bool `json:"results"`
}

// AckResponse is a generic OK response.
type AckResponse struct {
	OK bool `json:"ok"`
}

func (h *Handler) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

// StartSession starts or restarts a conversation.
func (h *Handler) StartSession(req *StartSessionArgs, resp *domain.StartSessionResponse) error {
	if req == nil {
		return errors.New("start session request is required")
	}
	ctx, cancel := h.context()
	defer cancel()

	result, err := h.service.StartSession(ctx, req.SessionID, req.Request)
	if err != nil {
		return err
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// SubmitTurn runs one conversation turn. A reply produced before a render
// failure is still returned alongside the error.
func (h *Handler) SubmitTurn(req *SubmitTurnArgs, resp *domain.TurnResponse) error {
	if req == nil {
		return errors.New("turn request is required")
	}
	if req.SessionID == "" {
		return errors.New("session_id is required")
	}
	ctx, cancel := h.context()
	defer cancel()

	result, err := h.service.SubmitTurn(ctx, req.SessionID, req.Request)
	if resp != nil && result != nil {
		*resp = *result
	}
	return err
}

// EndSession ends a conversation.
func (h *Handler) EndSession(req *EndSessionArgs, resp *AckResponse) error {
	if req == nil || req.SessionID == "" {
		return errors.New("session_id is required")
	}
	ctx, cancel := h.context()
	defer cancel()

	if err := h.service.EndSession(ctx, req.SessionID); err != nil {
		return err
	}
	if resp != nil {
		resp.OK = true
	}
	return nil
}

// ProbeProviders probes every configured provider.
func (h *Handler) ProbeProviders(req *ProbeArgs, resp *ProbeReply) error {
	ctx, cancel := h.context()
	defer cancel()

	results := h.service.ProbeProviders(ctx)
	if resp != nil {
		resp.Results = results
	}
	return nil
}
