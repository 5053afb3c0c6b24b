// Package http provides the public HTTP server: the game page, the
// WebSocket route and a few read-only endpoints.
package http

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/game"
)

//go:embed static/index.html
var indexHTML []byte

// StatsSource reports aggregated results. *service.Scoreboard satisfies it.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Server is the public HTTP server.
type Server struct {
	echo    *echo.Echo
	manager *game.Manager
	stats   StatsSource
	logger  *zap.Logger
}

// NewServer creates the HTTP server. wsHandler serves /ws/game.
func NewServer(manager *game.Manager, stats StatsSource, wsHandler echo.HandlerFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		manager: manager,
		stats:   stats,
		logger:  logger.With(zap.String("component", "http")),
	}

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.logger.Debug("Request handled", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Routes
	e.GET("/", s.handleIndex)
	e.GET("/health", s.handleHealth)
	e.GET("/rooms", s.handleRooms)
	e.GET("/rooms/:room/roster", s.handleRoster)
	e.GET("/stats", s.handleStats)
	if wsHandler != nil {
		e.GET("/ws/game", wsHandler)
	}

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

func (s *Server) handleHealth(c echo.Context) error {
	rooms := s.manager.Rooms()
	humans := 0
	for _, r := range rooms {
		humans += r.Humans
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"rooms":  len(rooms),
		"humans": humans,
	})
}

func (s *Server) handleRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Rooms())
}

// RosterResponse is the body of GET /rooms/:room/roster.
type RosterResponse struct {
	RoomID  string   `json:"room_id"`
	Players []string `json:"players"`
}

func (s *Server) handleRoster(c echo.Context) error {
	room := c.Param("room")
	session, ok := s.manager.Get(room)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
	}
	return c.JSON(http.StatusOK, RosterResponse{RoomID: room, Players: session.Roster()})
}

func (s *Server) handleStats(c echo.Context) error {
	if s.stats == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "stats unavailable"})
	}
	stats, err := s.stats.Stats(c.Request().Context())
	if err != nil {
		s.logger.Warn("Failed to load stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}
	return c.JSON(http.StatusOK, stats)
}
