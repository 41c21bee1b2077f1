package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/api/websocket"
	"github.com/KevinKickass/GiraIoTCore/internal/auth"
	"github.com/KevinKickass/GiraIoTCore/internal/interfaces"
	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	session interfaces.DeviceSession
	logger  *zap.Logger
	server  *http.Server
	wsHub   *websocket.Hub
	jwt     *auth.JWTHandler
	metrics *metrics.Metrics
}

// NewServer builds the control API. wsHub, jwt and m may be nil.
func NewServer(
	httpPort int,
	session interfaces.DeviceSession,
	wsHub *websocket.Hub,
	jwt *auth.JWTHandler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		session: session,
		logger:  logger.With(zap.String("component", "rest")),
		wsHub:   wsHub,
		jwt:     jwt,
		metrics: m,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", httpPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes
	s.router.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		// ==================== STATUS & DEVICES (READ) ====================
		read := v1.Group("")
		read.Use(s.jwt.Middleware(), s.jwt.RequirePermission(auth.PermRead))
		{
			read.GET("/system/status", s.getSessionStatus)
			read.GET("/devices", s.listDevices)
			read.GET("/devices/:id", s.getDevice)
		}

		// ==================== COMMANDS (CONTROL) ====================
		control := v1.Group("")
		control.Use(s.jwt.Middleware(), s.jwt.RequirePermission(auth.PermControl))
		{
			control.POST("/lights/:id/turn_on", s.turnOnLight)
			control.POST("/lights/:id/turn_off", s.turnOffLight)

			control.POST("/climates/:id/temperature", s.setTemperature)

			control.POST("/covers/:id/open", s.openCover)
			control.POST("/covers/:id/close", s.closeCover)
			control.POST("/covers/:id/stop", s.stopCover)
			control.POST("/covers/:id/position", s.setCoverPosition)
			control.POST("/covers/:id/tilt", s.setCoverTilt)
		}

		// ==================== WEBSOCKET (auth via first message) ====================
		if s.wsHub != nil {
			v1.GET("/ws/live", s.wsLiveConnection)
			v1.GET("/ws/status", s.jwt.Middleware(), s.wsStatus)
		}
	}
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"state":     s.session.GetCurrentStatus().State,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) getSessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.GetCurrentStatus())
}
