// Package server exposes a file box read-only over HTTP. Every path taken
// from a request is resolved through the containment guard before it is
// used, so that the server cannot be made to serve anything outside of the
// root.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/desertwitch/filebox/internal/metrics"
	"github.com/desertwitch/filebox/internal/schema"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

type guardProvider interface {
	Resolve(userPath string) (string, error)
	RootRelative(resolved string) string
	OpenRoot() (*os.Root, error)
}

type fsProvider interface {
	List(path string) ([]schema.Entry, error)
	Attributes(path string) (*schema.Attributes, error)
	MimeType(path string) (string, error)
}

type searchProvider interface {
	Find(ctx context.Context, path string, pattern string) ([]schema.Entry, error)
}

// Server is the principal implementation of the HTTP surface.
type Server struct {
	engine        *gin.Engine
	guard         guardProvider
	fsHandler     fsProvider
	searchHandler searchProvider
	metrics       *metrics.Metrics
}

// New returns a pointer to a new [Server]. The metrics may be nil, in which
// case neither requests are recorded nor "/metrics" is served.
func New(guard guardProvider, fsHandler fsProvider, searchHandler searchProvider, m *metrics.Metrics) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	srv := &Server{
		engine:        engine,
		guard:         guard,
		fsHandler:     fsHandler,
		searchHandler: searchHandler,
		metrics:       m,
	}

	if m != nil {
		engine.Use(requestMetrics(m))
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := engine.Group("/api")
	api.GET("/list", srv.handleList)
	api.GET("/stat", srv.handleStat)
	api.GET("/find", srv.handleFind)

	engine.GET("/files/*path", srv.handleFile)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return srv
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Serve listens on addr until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Serving file box", "addr", addr)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("(server) %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("(server) failed to shut down: %w", err)
		}

		if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("(server) %w", err)
		}

		return nil
	}
}

// requestMetrics records every request by its route template, so that the
// requested paths do not end up as label values.
func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		slog.Debug("Served request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
