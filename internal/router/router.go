// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-pass-system/internal/handler"
	"github.com/iliyamo/event-pass-system/internal/middleware"
)

// Use installs the middleware shared by every route: panic recovery,
// request logging and CORS for the browser front-ends.
func Use(e *echo.Echo, logger logrus.FieldLogger) {
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORS())
}

// RegisterRoutes registers the health check and the static asset tree
// (rendered passes, sponsor and powered-by logos).
func RegisterRoutes(e *echo.Echo, staticDir string) {
	e.GET("/healthz", handler.Health)
	e.Static("/static", staticDir)
}

// RegisterPasses registers issuance, scanning, listing, download and stats
// under /api.  limit applies to the whole group; cache fronts only the
// read-mostly listing and stats endpoints.
func RegisterPasses(e *echo.Echo, p *handler.PassHandler, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/api", limit)
	g.POST("/generate", p.Generate)
	g.POST("/verify", p.Scan)
	g.GET("/verify/:serial", p.Verify)
	g.GET("/passes", p.List, cache)
	g.GET("/download/:serial", p.Download)
	g.GET("/stats", p.Stats, cache)
}

// RegisterBranding registers sponsor and powered-by management under /api.
func RegisterBranding(e *echo.Echo, s *handler.SponsorHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/api", limit)
	g.POST("/sponsor", s.AddSponsor)
	g.GET("/sponsor", s.ListSponsors)
	g.DELETE("/sponsor/:name", s.RemoveSponsor)
	g.POST("/powered-by", s.UpdatePoweredBy)
	g.GET("/powered-by", s.GetPoweredBy)
}
