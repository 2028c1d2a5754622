// Package server exposes the operations HTTP surface: health, metrics and retention state.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rcliao/guildkeeper/internal/metrics"
	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/retention"
)

// Sweeps is the scheduler view the server needs. *retention.Scheduler implements it.
type Sweeps interface {
	Last() (retention.SweepResult, bool)
	RunNow(ctx context.Context) (retention.SweepResult, bool)
}

// Departures lists a guild's retention records. *retention.Service implements it.
type Departures interface {
	ListDeparted(ctx context.Context, guildID string) ([]model.RetentionRecord, error)
}

// Server is the ops HTTP server.
type Server struct {
	engine     *gin.Engine
	sweeps     Sweeps
	departures Departures
	log        logrus.FieldLogger
}

// New builds the router.
func New(sweeps Sweeps, departures Departures, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:     gin.New(),
		sweeps:     sweeps,
		departures: departures,
		log:        log.WithField("component", "ops"),
	}
	s.engine.Use(gin.Recovery(), s.logRequests())

	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.engine.GET("/retention/last-sweep", s.lastSweep)
	s.engine.POST("/retention/sweep", s.sweepNow)
	s.engine.GET("/guilds/:guild_id/departed", s.listDeparted)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) lastSweep(c *gin.Context) {
	res, ok := s.sweeps.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sweep has run yet"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) sweepNow(c *gin.Context) {
	res, ran := s.sweeps.RunNow(c.Request.Context())
	if !ran {
		c.JSON(http.StatusConflict, gin.H{"error": "a sweep is already running"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listDeparted(c *gin.Context) {
	recs, err := s.departures.ListDeparted(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		s.log.WithError(err).Error("list departed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []model.RetentionRecord{}
	}
	c.JSON(http.StatusOK, recs)
}
