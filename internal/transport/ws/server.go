// Package ws serves the game's WebSocket endpoint.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/config"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/game"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	manager  *game.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, manager *game.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The page is served from the same binary; any origin may play.
				return true
			},
		},
		logger: logger.With(zap.String("component", "ws")),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*Conn),
	}
}

// HandleWebSocket upgrades the request and joins the player to the room
// named by the "room" query parameter.
func (s *Server) HandleWebSocket(c echo.Context) error {
	room := c.QueryParam("room")
	if room == "" {
		room = s.cfg.DefaultRoom
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade WebSocket", zap.Error(err))
		return err
	}
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	conn := newConn(ws)
	s.track(conn)
	s.wg.Add(1)
	go s.writePump(conn)

	session, p, err := s.manager.Join(s.ctx, room, conn)
	if err != nil {
		s.logger.Warn("Failed to join room", zap.String("room_id", room), zap.Error(err))
		conn.Close()
		s.untrack(conn)
		return nil
	}
	s.logger.Info("Player connected",
		zap.String("conn_id", conn.ID), zap.String("room_id", room), zap.String("name", p.DisplayName))

	s.wg.Add(1)
	go s.readPump(conn, session, p)
	return nil
}

// readPump reads frames until the socket fails, then leaves the room.
func (s *Server) readPump(conn *Conn, session *game.Session, p domain.Participant) {
	defer s.wg.Done()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		defer cancel()
		s.manager.Leave(ctx, session, p.ID)
		conn.Close()
		s.untrack(conn)
		s.logger.Info("Player disconnected", zap.String("conn_id", conn.ID), zap.String("name", p.DisplayName))
	}()

	conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket error", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}
		session.Handle(s.ctx, p, message)
	}
}

// writePump drains the send queue and keeps the socket alive with pings.
func (s *Server) writePump(conn *Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
		s.wg.Done()
	}()

	for {
		select {
		case message := <-conn.send:
			if err := conn.write(websocket.TextMessage, message, s.cfg.WriteTimeout); err != nil {
				s.logger.Debug("Failed to write message", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}

		case <-conn.done:
			s.flush(conn)
			_ = conn.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), s.cfg.WriteTimeout)
			return

		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil, s.cfg.WriteTimeout); err != nil {
				return
			}
		}
	}
}

// flush writes whatever is still queued without waiting for more.
func (s *Server) flush(conn *Conn) {
	for {
		select {
		case message := <-conn.send:
			if err := conn.write(websocket.TextMessage, message, s.cfg.WriteTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) track(conn *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = conn
}

func (s *Server) untrack(conn *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.ID)
}

// ConnectionCount returns the number of open sockets.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown closes every socket and waits for the pumps to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
