// Package adminapi provides HTTP REST endpoints for health checking and
// room/throttle introspection. It runs on a separate TCP port from the
// WebTransport/QUIC transport.
package adminapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gitter-badger/hifi/internal/config"
	"github.com/gitter-badger/hifi/internal/store"
	"github.com/gitter-badger/hifi/internal/transport"
)

// RoomStats is the transport-side counters the mixer exposes, satisfied
// by *transport.Hub.
type RoomStats interface {
	Stats() transport.Stats
	PeerCount() int
}

// ThrottleState is the throttle-controller readout exposed to operators,
// satisfied by *throttle.Controller.
type ThrottleState interface {
	TrailingSleepRatio() float64
	PerformanceThrottlingRatio() float64
	MinAudibilityThreshold() float64
}

// Server serves the admin HTTP API.
type Server struct {
	room     RoomStats
	throttle ThrottleState
	store    *store.Store
	cfg      *config.MixerConfig
	logger   *slog.Logger
	echo     *echo.Echo
}

// New constructs a Server and registers all routes.
func New(room RoomStats, throttleCtl ThrottleState, st *store.Store, cfg *config.MixerConfig, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{room: room, throttle: throttleCtl, store: st, cfg: cfg, logger: logger, echo: e}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/room", s.handleRoom)
	s.echo.GET("/api/settings", s.handleGetSettings)
	s.echo.PUT("/api/settings", s.handlePutSettings)
}

// Run starts the Echo HTTP server on addr and blocks until ctx is
// canceled.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin api server error", "err", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		s.logger.Warn("admin api shutdown", "err", err)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Peers: s.room.PeerCount()})
}

// RoomResponse is the payload for GET /api/room.
type RoomResponse struct {
	Peers                      int     `json:"peers"`
	TotalDatagrams             uint64  `json:"total_datagrams"`
	TotalBytes                 uint64  `json:"total_bytes"`
	BadPackets                 uint64  `json:"bad_packets"`
	UnknownSource              uint64  `json:"unknown_source"`
	Backpressure               uint64  `json:"backpressure"`
	TrailingSleepRatio         float64 `json:"trailing_sleep_ratio"`
	PerformanceThrottlingRatio float64 `json:"performance_throttling_ratio"`
	MinAudibilityThreshold     float64 `json:"min_audibility_threshold"`
}

func (s *Server) handleRoom(c echo.Context) error {
	stats := s.room.Stats()
	return c.JSON(http.StatusOK, RoomResponse{
		Peers:                      stats.Peers,
		TotalDatagrams:             stats.TotalDatagrams,
		TotalBytes:                 stats.TotalBytes,
		BadPackets:                 stats.BadPackets,
		UnknownSource:              stats.UnknownSource,
		Backpressure:               stats.Backpressure,
		TrailingSleepRatio:         s.throttle.TrailingSleepRatio(),
		PerformanceThrottlingRatio: s.throttle.PerformanceThrottlingRatio(),
		MinAudibilityThreshold:     s.throttle.MinAudibilityThreshold(),
	})
}

// SettingsResponse is the payload for GET /api/settings.
type SettingsResponse struct {
	ServerName          string `json:"server_name"`
	UnattenuatedZone    string `json:"unattenuated_zone,omitempty"`
	DynamicJitterBuffers bool  `json:"dynamic_jitter_buffers"`
}

// SettingsRequest is the body for PUT /api/settings.
type SettingsRequest struct {
	ServerName       string `json:"server_name"`
	UnattenuatedZone string `json:"unattenuated_zone"`
}

func (s *Server) handleGetSettings(c echo.Context) error {
	name, _, err := s.store.GetSetting(store.KeyServerName)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	zone, _, err := s.store.GetSetting(store.KeyUnattenuatedZone)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SettingsResponse{
		ServerName:           name,
		UnattenuatedZone:     zone,
		DynamicJitterBuffers: s.cfg.DynamicJitterBuffers,
	})
}

func (s *Server) handlePutSettings(c echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	name, err := config.ValidateName(req.ServerName, config.MaxServerNameLength)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.store.SetSetting(store.KeyServerName, name); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.UnattenuatedZone != "" {
		zones, err := config.ParseZonePair(req.UnattenuatedZone)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := s.store.SetSetting(store.KeyUnattenuatedZone, req.UnattenuatedZone); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		s.cfg.Zones = zones
	}

	return c.NoContent(http.StatusNoContent)
}
