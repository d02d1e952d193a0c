// Package server exposes the aggregation core over HTTP. It is the only
// place where internal faults are classified into user-safe outcomes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/internal/aggregate"
	"github.com/opendata-tw/roadwatch/internal/auth"
	"github.com/opendata-tw/roadwatch/internal/pager"
	"github.com/opendata-tw/roadwatch/internal/pager/inmemory"
	"github.com/opendata-tw/roadwatch/internal/pager/redisstore"
	"github.com/opendata-tw/roadwatch/internal/region"
	"github.com/opendata-tw/roadwatch/internal/source"
)

// Run wires the core components and serves the API until the listener
// stops.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code, msg := classify(err)
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}

	resolver := region.NewResolver(cfg.Region)
	tokens := auth.NewManager(cfg.Auth)

	var fetchers []source.Fetcher
	if cfg.Sources.TDX.Enabled {
		fetchers = append(fetchers, source.NewTDX(cfg.Sources.TDX, cfg.Sources.Fetch, tokens))
	}
	if cfg.Sources.Freeway.Enabled {
		fetchers = append(fetchers, source.NewFreeway(cfg.Sources.Freeway, cfg.Sources.Fetch))
	}
	if cfg.Sources.THB.Enabled {
		fetchers = append(fetchers, source.NewTHB(cfg.Sources.THB, cfg.Sources.Fetch))
	}
	if len(fetchers) == 0 {
		return fmt.Errorf("no sources enabled")
	}
	agg := aggregate.New(fetchers, resolver, cfg.Sources)

	var store pager.Store
	switch cfg.Storage.Backend {
	case "redis":
		rs := redisstore.NewStore(cfg.Storage.Redis)
		if err := rs.Ping(context.Background()); err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
		store = rs
	default:
		store = inmemory.NewStore()
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	h := &Handler{
		Agg:      agg,
		Store:    store,
		PageSize: cfg.Pagination.PageSize,
		TTL:      cfg.Pagination.TTL,
	}
	h.Register(e.Group("/api"))

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// classify maps the internal error taxonomy to a status code and a
// user-safe message. Internal detail never reaches the response body.
func classify(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	}
	var allDown *aggregate.AllSourcesUnavailableError
	if errors.As(err, &allDown) {
		return http.StatusServiceUnavailable, "data sources are temporarily unavailable, please try again later"
	}
	var expired *pager.StateExpiredError
	if errors.As(err, &expired) {
		return http.StatusGone, "this result set has expired, run the search again"
	}
	var notOwner *pager.NotOwnerError
	if errors.As(err, &notOwner) {
		return http.StatusForbidden, "only the user who ran the search can navigate it"
	}
	if errors.Is(err, pager.ErrSessionNotFound) {
		return http.StatusNotFound, "unknown session"
	}
	if errors.Is(err, pager.ErrNoRecords) {
		return http.StatusConflict, "no results to pick from"
	}
	return http.StatusInternalServerError, "internal error"
}
