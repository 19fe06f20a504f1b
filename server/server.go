package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/sukritx/piyanutai/internal/profile"
	"github.com/sukritx/piyanutai/server/ai"
	"github.com/sukritx/piyanutai/server/chat"
	apiv1 "github.com/sukritx/piyanutai/server/router/api/v1"
	"github.com/sukritx/piyanutai/store"
)

// Server hosts the REST API.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer assembles the AI provider, the pipeline and the HTTP routes.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	e := echo.New()
	e.Debug = true
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins(profile),
		AllowCredentials: true,
	}))
	e.Use(requestLogger())

	s := &Server{
		Profile:    profile,
		Store:      store,
		echoServer: e,
	}

	aiProvider, err := ai.NewProvider(ai.ConfigFromProfile(profile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AI provider")
	}
	if err := aiProvider.Validate(ctx); err != nil {
		return nil, errors.Wrap(err, "invalid AI provider configuration")
	}

	pipeline := chat.NewPipeline(store, aiProvider, aiProvider, aiProvider, profile.TempDir())

	apiV1Service := apiv1.NewAPIV1Service(profile.Secret, profile, store, pipeline)
	apiV1Service.Register(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	return s, nil
}

// Start begins serving in the background. Errors other than a clean shutdown
// are logged, not returned.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}

	slog.Info("server shutdown complete")
}

func allowedOrigins(profile *profile.Profile) []string {
	if profile.AllowedOrigins == "" {
		return []string{"*"}
	}
	origins := strings.Split(profile.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// requestLogger logs one line per request with method, path, status and
// latency. Health checks are skipped.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/healthz" {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
				err = nil
			}

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}
