package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/pipeline"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/repository"
	"github.com/aadityasp/agreegraph/tools/webfetch"
)

// Run wires the full service and serves HTTP until the listener fails.
func Run(cfgPath, addr string) error {
	cfg := appconfig.LoadConfig(cfgPath)
	if addr == "" {
		addr = cfg.Server.Address
	}

	e := echo.New()
	e.HideBanner = true
	if cfg.General.DebugLogging() {
		e.Debug = true
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	if repository.RepoType(cfg.Storage.GraphBackend) == repository.RepoTypePostgres {
		if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}
	repo, err := repository.NewGraphRepository(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	c := cache.New(cfg.Cache, nil)
	recorder := telemetry.NewRecorder(cfg.Telemetry, cfg.General.LogFormat, nil)
	fetcher := webfetch.NewClient(cfg.Fetch, nil)

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := pipeline.NewOrchestrator(cfg, c, repo, recorder, fetcher, orchLogger)
	if err != nil {
		return err
	}

	api := e.Group("/api/v1")
	rh := NewRunsHandler(cfg, orch, c)
	rh.Register(api)

	return e.Start(addr)
}
