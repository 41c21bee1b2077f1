// Package callback serves the HTTPS endpoint the vendor device pushes value
// change events to.
package callback

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sink receives push events. It is implemented by the state store.
type Sink interface {
	FindFunction(pointID string) (string, error)
	ApplyUpdate(functionID, pointID string, raw any)
}

// Event is one value change in a push batch.
type Event struct {
	UID   string `json:"uid"`
	Value any    `json:"value"`
}

type pushBody struct {
	Events []Event `json:"events"`
}

// Server is the push callback listener.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewServer creates a listener on addr. cert may be nil for plain HTTP, which
// is only useful in tests.
func NewServer(addr string, cert *tls.Certificate, sink Sink, logger *zap.Logger, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		sink:    sink,
		logger:  logger.With(zap.String("component", "callback")),
		metrics: m,
	}

	s.router.Use(gin.Recovery())
	s.router.POST("/value", s.handleValue)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cert != nil {
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return s
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener synchronously, so the callback can be registered
// with the vendor right after Start returns, and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting push callback listener",
		zap.String("address", ln.Addr().String()),
		zap.Bool("tls", s.server.TLSConfig != nil))

	go func() {
		var err error
		if s.server.TLSConfig != nil {
			err = s.server.ServeTLS(ln, "", "")
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Push callback listener failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down push callback listener")
	return s.server.Shutdown(ctx)
}

// handleValue always acknowledges. A malformed body is dropped as a whole;
// events for untracked points are dropped one by one.
func (s *Server) handleValue(c *gin.Context) {
	var body pushBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.metrics.PushEvent("invalid")
		s.logger.Warn("Dropping malformed push body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	applied := 0
	for _, ev := range body.Events {
		fid, err := s.sink.FindFunction(ev.UID)
		if err != nil {
			s.metrics.PushEvent("dropped")
			s.logger.Debug("Dropping event for untracked point", zap.String("point", ev.UID))
			continue
		}
		s.sink.ApplyUpdate(fid, ev.UID, ev.Value)
		s.metrics.PushEvent("applied")
		applied++
	}

	s.logger.Debug("Push batch handled",
		zap.Int("events", len(body.Events)),
		zap.Int("applied", applied))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
