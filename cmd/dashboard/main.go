// FTE Dashboard - live operations dashboard for the Digital FTE backend
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/fte-dashboard/internal/api"
	"github.com/ashureev/fte-dashboard/internal/backend"
	"github.com/ashureev/fte-dashboard/internal/config"
	"github.com/ashureev/fte-dashboard/internal/dashboard"
	"github.com/ashureev/fte-dashboard/internal/identity"
	"github.com/ashureev/fte-dashboard/internal/live"
	"github.com/ashureev/fte-dashboard/internal/middleware"
	"github.com/ashureev/fte-dashboard/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadArgs(os.Args[1:])
	var help *config.HelpError
	if errors.As(err, &help) {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n%s", os.Args[0], help.Usage)
		os.Exit(0)
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting dashboard", "port", cfg.Port, "api_base", cfg.APIBaseURL, "poll_interval", cfg.PollInterval, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	client, err := backend.NewClient(backend.ClientConfig{
		BaseURL:        cfg.APIBaseURL,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize backend client", "error", err)
		os.Exit(1)
	}

	hub := live.NewHub(cfg.OutboxSize, logger)
	ctrl := dashboard.New(client, hub,
		dashboard.WithLogger(logger),
		dashboard.WithAckDelay(cfg.ChatAckDelay),
	)
	poller := dashboard.NewPoller(ctrl, cfg.PollInterval, logger)

	// Actions started from a tab outlive the tab but not the process.
	actionCtx, cancelActions := context.WithCancel(context.Background())
	defer cancelActions()

	// Initialize handlers.
	uiHandler := api.NewHandler(ctrl, poller, logger)
	healthHandler := api.NewHealthHandler(client, 0, logger)
	wsHandler := live.NewWebSocketHandler(actionCtx, hub, ctrl, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	origins := []string{cfg.FrontendURL}
	if cfg.IsDevelopment() {
		origins = append(origins, "*")
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(origins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	uiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/dashboard", wsHandler.ServeHTTP)

	// Serve embedded page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: websocket connections are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)
	ctrl.Render()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown leaves hijacked websockets open: stop taking actions from
	// them, then disconnect every tab.
	wsHandler.Close()
	hub.Close()

	poller.Stop()
	cancelActions()
	wsHandler.Wait()
	ctrl.Close()

	slog.Info("Dashboard stopped")
}
