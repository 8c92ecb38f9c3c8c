package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radeon-ai/reasoner/config"
	"github.com/radeon-ai/reasoner/internal/agent"
	"github.com/radeon-ai/reasoner/internal/conversation"
	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/telemetry"
)

// Run builds the full service from config and serves until the listener
// fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
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
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	// Knowledge base must load before anything serves.
	corpus, err := knowledge.LoadCorpus(cfg.Knowledge.CorpusPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	ix, err := knowledge.Build(corpus)
	if err != nil {
		return fmt.Errorf("build knowledge index: %w", err)
	}
	holder := knowledge.NewHolder(ix)

	if cfg.Knowledge.Watch {
		watchLogger := log.New(log.Writer(), "[WATCHER] ", log.LstdFlags)
		w, err := knowledge.NewWatcher(holder, cfg.Knowledge.CorpusPath, watchLogger)
		if err != nil {
			return fmt.Errorf("corpus watcher: %w", err)
		}
		go w.Run(ctx)
	}

	var store conversation.Store
	switch cfg.Session.Store {
	case "redis":
		client, err := conversation.Conn(ctx, cfg.Storage.Redis)
		if err != nil {
			return err
		}
		store = conversation.NewRedisStore(client, cfg.Session.TTL)
	default:
		store = conversation.NewInMemoryStore(cfg.Session.TTL)
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	ag := agent.New(cfg, holder, store, tele)

	h := &ChatHandler{Agent: ag, Holder: holder, Store: store, Telemetry: tele}
	h.Register(e.Group("/api"))

	return e.Start(cfg.Server.Address)
}
