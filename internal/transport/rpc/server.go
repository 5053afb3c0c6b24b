// Package rpc exposes operator endpoints over JSON-RPC.
package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/game"
)

// ServiceName is the name methods are registered under, e.g. "Game.Announce".
const ServiceName = "Game"

// Server accepts JSON-RPC connections.
type Server struct {
	rpcServer *rpc.Server
	logger    *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a JSON-RPC server backed by manager.
func NewServer(manager *game.Manager, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "rpc"))

	rpcServer := rpc.NewServer()
	handler := &Handler{manager: manager, logger: logger}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, err
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warn("RPC accept error", zap.Error(err))
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if err := ln.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Game RPC methods.
type Handler struct {
	manager *game.Manager
	logger  *zap.Logger
}

// AnnounceRequest is the argument of Game.Announce.
type AnnounceRequest struct {
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

// AnnounceResponse reports how many players received the notice.
type AnnounceResponse struct {
	OK        bool `json:"ok"`
	Delivered int  `json:"delivered"`
}

// Announce broadcasts an operator notice to a room.
func (h *Handler) Announce(req *AnnounceRequest, resp *AnnounceResponse) error {
	if req == nil {
		return errors.New("announce request is required")
	}
	if req.RoomID == "" {
		return errors.New("room_id is required")
	}
	if req.Text == "" {
		return errors.New("text is required")
	}

	session, ok := h.manager.Get(req.RoomID)
	if !ok {
		return errors.New("room not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	delivered := session.Announce(ctx, req.Text)

	h.logger.Info("Announcement sent", zap.String("room_id", req.RoomID), zap.Int("delivered", delivered))

	if resp != nil {
		resp.OK = true
		resp.Delivered = delivered
	}
	return nil
}

// RosterRequest is the argument of Game.Roster.
type RosterRequest struct {
	RoomID string `json:"room_id"`
}

// RosterResponse lists a room's display names in join order.
type RosterResponse struct {
	Players []string `json:"players"`
}

// Roster returns the current participants of a room.
func (h *Handler) Roster(req *RosterRequest, resp *RosterResponse) error {
	if req == nil || req.RoomID == "" {
		return errors.New("room_id is required")
	}
	session, ok := h.manager.Get(req.RoomID)
	if !ok {
		return errors.New("room not found")
	}
	if resp != nil {
		resp.Players = session.Roster()
	}
	return nil
}

// RoomsRequest is the argument of Game.Rooms.
type RoomsRequest struct{}

// RoomsResponse lists live rooms.
type RoomsResponse struct {
	Rooms []game.RoomInfo `json:"rooms"`
}

// Rooms lists every live room.
func (h *Handler) Rooms(_ *RoomsRequest, resp *RoomsResponse) error {
	if resp != nil {
		resp.Rooms = h.manager.Rooms()
	}
	return nil
}
