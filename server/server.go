// Package server exposes the actor to other federated servers: host-meta,
// WebFinger and the actor profile, plus a local trigger for reply deliveries.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cvhariharan/alice/activity"
	"github.com/cvhariharan/alice/delivery"
	"github.com/cvhariharan/alice/keys"
)

// Deliverer pushes a composed document to a remote inbox.
type Deliverer interface {
	Deliver(ctx context.Context, doc activity.Document, target delivery.Target) (*delivery.Result, error)
}

// Server wires the HTTP routes.
type Server struct {
	echo       *echo.Echo
	composer   *activity.Composer
	deliverer  Deliverer
	keys       keys.Provider
	logger     *zap.Logger
	adminToken string
	now        func() time.Time
}

// Options carries the collaborators of a Server.
type Options struct {
	Composer       *activity.Composer
	Deliverer      Deliverer
	Keys           keys.Provider
	Logger         *zap.Logger
	AdminToken     string
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Now            func() time.Time
}

// New builds the echo instance and registers every route.
func New(opts Options) *Server {
	s := &Server{
		echo:       echo.New(),
		composer:   opts.Composer,
		deliverer:  opts.Deliverer,
		keys:       opts.Keys,
		logger:     opts.Logger,
		adminToken: opts.AdminToken,
		now:        opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead},
	}))
	if opts.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(opts.RequestTimeout))
	}
	e.Pre(middleware.RemoveTrailingSlash())

	e.GET("/host-meta", s.hostMeta)
	e.GET("/.well-known/host-meta", s.hostMeta)
	e.GET("/.well-known/webfinger", s.webfinger)
	e.GET("/actor", s.actor)
	e.POST("/inbox", s.inbox)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if s.adminToken != "" {
		e.POST("/deliveries", s.deliver, middleware.KeyAuth(s.checkToken))
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on address until Shutdown is called.
func (s *Server) Start(address string) error {
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) checkToken(key string, _ echo.Context) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.adminToken)) == 1, nil
}
