package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/kinetic/kinetic/internal/config"
	"github.com/kinetic/kinetic/internal/domain/consent"
	"github.com/kinetic/kinetic/internal/domain/continuity"
	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/domain/eligibility"
	"github.com/kinetic/kinetic/internal/domain/episode"
	"github.com/kinetic/kinetic/internal/domain/signals"
	"github.com/kinetic/kinetic/internal/platform/auth"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/middleware"
	"github.com/kinetic/kinetic/internal/platform/websocket"
)

func newEcho(cfg *config.Config, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(a.metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.pinger != nil {
		e.GET("/health/db", db.HealthHandler(a.pinger))
	}
	e.GET("/metrics", a.metrics.Handler())

	var authn echo.MiddlewareFunc
	if cfg.IsDev() {
		authn = auth.DevAuthMiddleware()
	} else {
		authn = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	api := e.Group("/api/v1", authn, middleware.Audit(logger))

	directory.NewHandler(a.directory).RegisterRoutes(api)
	episode.NewHandler(a.episodes).RegisterRoutes(api)
	consent.NewHandler(a.consents).RegisterRoutes(api)
	signals.NewHandler(a.signals).RegisterRoutes(api)
	eligibility.NewHandler(a.eligibility).RegisterRoutes(api)
	continuity.NewHandler(a.continuity).RegisterRoutes(api)
	websocket.NewHandler(a.hub, cfg.CORSOrigins).RegisterRoutes(api)

	return e
}
