// Package main provides the entry point for the render server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jmylchreest/renderd/internal/api/handlers"
	"github.com/jmylchreest/renderd/internal/browser"
	"github.com/jmylchreest/renderd/internal/config"
	"github.com/jmylchreest/renderd/internal/cookies"
	"github.com/jmylchreest/renderd/internal/history"
	"github.com/jmylchreest/renderd/internal/logging"
	"github.com/jmylchreest/renderd/internal/render"
	"github.com/jmylchreest/renderd/internal/shutdown"
	"github.com/jmylchreest/renderd/internal/version"
)

// RootOutput is the status banner for GET /.
type RootOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func main() {
	// Load configuration first (logging config comes from env)
	cfg := config.Load()

	// Initialize logger using slog-logfilter (respects LOG_LEVEL, LOG_FORMAT env vars)
	logger := logging.SetDefault()

	logger.Info("starting render server",
		"version", version.Get().Version,
		"port", cfg.Port,
		"cookie_file", cfg.CookieFile,
		"browser_idle_timeout", cfg.BrowserIdleTimeout,
	)

	// Cookie jar shared by every render and by the CRUD endpoints
	jar := cookies.NewStore(cfg.CookieFile, logger)

	// Browser pool (the browser itself is launched on first render)
	engine := browser.NewRodEngine(cfg.ChromePath, logger)
	pool := browser.NewPool(engine, jar, cfg.BrowserIdleTimeout, logger)
	defer pool.Shutdown()

	orch := render.NewOrchestrator(pool, jar, cfg.NavTimeout, cfg.SettleGrace, logger)

	// Optional render history
	var hist *history.Store
	if cfg.HistoryDBPath != "" {
		var err error
		hist, err = history.NewStore(cfg.HistoryDBPath, logger)
		if err != nil {
			logger.Error("failed to initialize render history, continuing without", "error", err)
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	// Initialize handlers
	scrapeHandler := handlers.NewScrapeHandler(orch, hist, cfg, logger)
	cookiesHandler := handlers.NewCookiesHandler(jar, pool, logger)
	historyHandler := handlers.NewHistoryHandler(hist, logger)
	healthHandler := handlers.NewHealthHandler(pool, jar)

	// Idle monitor (optional scale-to-zero shutdown)
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout: cfg.IdleTimeout,
		Logger:  logger,
	})
	idleMonitor.Start()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.WaitMax + cfg.SettleGrace + 30*time.Second))
	r.Use(idleMonitor.Middleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Create Huma API
	humaConfig := huma.DefaultConfig("Render Server", version.Get().Version)
	humaConfig.Info.Description = "Renders JavaScript-heavy pages with a shared headless browser and persists session cookies across requests"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Server status",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*RootOutput, error) {
		return &RootOutput{
			ContentType: "text/html; charset=utf-8",
			Body:        []byte("<h1>Render server is running</h1>"),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns browser pool liveness and cookie jar statistics",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*handlers.HealthOutput, error) {
		return &handlers.HealthOutput{Body: *healthHandler.Handle(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "scrape",
		Method:      http.MethodGet,
		Path:        "/scrape",
		Summary:     "Render a page",
		Description: "Navigates to the URL in a fresh browser session and returns the DOM snapshot captured when the wait budget elapses",
		Tags:        []string{"Render"},
	}, scrapeHandler.Handle)

	huma.Register(api, huma.Operation{
		OperationID: "listCookies",
		Method:      http.MethodGet,
		Path:        "/cookies",
		Summary:     "List cookies",
		Tags:        []string{"Cookies"},
	}, func(ctx context.Context, input *struct{}) (*handlers.ListCookiesOutput, error) {
		return cookiesHandler.List(ctx), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateCookies",
		Method:      http.MethodPost,
		Path:        "/cookies",
		Summary:     "Add or update cookies",
		Description: "Merges the submitted records into the jar by (name, domain) and re-applies the jar to the live browser session",
		Tags:        []string{"Cookies"},
	}, cookiesHandler.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteCookies",
		Method:      http.MethodDelete,
		Path:        "/cookies",
		Summary:     "Delete cookies by name",
		Description: "Removes every cookie matching one of the given names, across all domains",
		Tags:        []string{"Cookies"},
	}, cookiesHandler.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "renderHistory",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Recent renders",
		Tags:        []string{"Render"},
	}, historyHandler.Handle)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WaitMax + cfg.SettleGrace + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal or idle shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down server...", "signal", sig.String())
	case <-idleMonitor.ShutdownChan():
		logger.Info("shutting down server (idle)...")
	}

	if idleMonitor.IsEnabled() {
		idleMonitor.Stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
