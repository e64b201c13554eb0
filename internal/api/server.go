package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/trace-sentinel/internal/app"
	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/logger"
	"github.com/raaihank/trace-sentinel/internal/security"
	"github.com/raaihank/trace-sentinel/internal/web"
	"github.com/raaihank/trace-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by the info endpoint
var Version = "0.1.0"

const statusInterval = 30 * time.Second

// Server exposes the detectors over HTTP
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	components *app.Components
	limiter    *security.RateLimiter
	router     *mux.Router
	server     *http.Server
	wsHub      *websocket.Hub
	started    time.Time

	totalScans      atomic.Int64
	totalDetections atomic.Int64
}

// New creates a new API server instance
func New(cfg *config.Config, log *logger.Logger, components *app.Components) *Server {
	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastDetections:  cfg.WebSocket.Events.BroadcastDetections,
		BroadcastSystem:      cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		Username:             cfg.WebSocket.Username,
		Password:             cfg.WebSocket.Password,
		ReadBufferSize:       cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:      cfg.WebSocket.WriteBufferSize,
		AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
	}, log.WithComponent("websocket").Logger)

	s := &Server{
		config:     cfg,
		logger:     log.WithComponent("api"),
		components: components,
		limiter:    security.NewRateLimiter(cfg.RateLimit),
		router:     mux.NewRouter(),
		wsHub:      wsHub,
		started:    time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.components.Metrics.Handler()).Methods("GET")
	}

	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.loggingMiddleware)
	v1.Use(s.rateLimitMiddleware)
	v1.HandleFunc("/spans/scan", s.handleScanSpan).Methods("POST")
	v1.HandleFunc("/spans/mask", s.handleMaskSpan).Methods("POST")
	v1.HandleFunc("/json/scan", s.handleScanJSON).Methods("POST")
	v1.HandleFunc("/xml/scan", s.handleScanXML).Methods("POST")
	v1.HandleFunc("/locations", s.handleLocations).Methods("GET")
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and the background loops until the server stops
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting trace-sentinel API server",
		zap.Int("port", s.config.Server.Port),
		zap.Strings("finders", s.components.Engine.FinderNames()),
		zap.String("whitelist_source", s.config.Whitelist.Source),
	)

	go s.wsHub.Run(ctx)
	go s.statusLoop(ctx)
	s.limiter.StartCleanupRoutine(ctx.Done())

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping trace-sentinel API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.wsHub.BroadcastEvent(websocket.Event{
				Type:      websocket.EventTypeSystemStatus,
				Timestamp: time.Now(),
				Data:      s.status(),
			})
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) status() websocket.SystemStatusEvent {
	return websocket.SystemStatusEvent{
		Status:           "healthy",
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		TotalScans:       s.totalScans.Load(),
		TotalDetections:  s.totalDetections.Load(),
		Finders:          s.components.Engine.FinderNames(),
		WhitelistEntries: s.components.WhitelistEntries(),
		ConnectedClients: int(s.wsHub.GetStats().ActiveConnections),
	}
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

func goroutines() int {
	return runtime.NumGoroutine()
}
