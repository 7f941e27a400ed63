// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/casedeck/internal/backend"
	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/mcpserver"
	"github.com/starford/casedeck/internal/render"
	"github.com/starford/casedeck/internal/sse"
	"github.com/starford/casedeck/internal/tui"
	"github.com/starford/casedeck/internal/web"
	pkgconfig "github.com/starford/casedeck/pkg/config"
)

func setup(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds a JSON logger whose level can be changed at runtime.
func newLogger(w io.Writer, level slog.Level) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(level)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})), lv
}

// sideLogger is the logger for commands that own stdout: it writes to
// app.log_file, or nowhere.
func sideLogger(cfg *Config) (*slog.Logger, *slog.LevelVar, func(), error) {
	if cfg.App.LogFile == "" {
		logger, lv := newLogger(io.Discard, cfg.App.LogLevel)
		return logger, lv, func() {}, nil
	}
	f, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger, lv := newLogger(f, cfg.App.LogLevel)
	return logger, lv, func() { _ = f.Close() }, nil
}

func newBackend(cfg *Config, logger *slog.Logger) *backend.Client {
	return backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger))
}

func controllerOptions(cfg *Config, logger *slog.Logger) controller.Options {
	return controller.Options{
		SearchDebounce: cfg.UI.SearchDebounce,
		NoticeTTL:      cfg.UI.NoticeTTL,
		Logger:         logger,
	}
}

// watchConfig re-applies the log level whenever the config file changes.
// Other settings need a restart.
func watchConfig(ctx context.Context, app *application, lv *slog.LevelVar, logger *slog.Logger) error {
	if app.configPath == "" {
		<-ctx.Done()
		return nil
	}
	err := pkgconfig.Watch(ctx, app.configPath, NewDefaultConfig, func(cfg *Config) {
		if lv.Level() != cfg.App.LogLevel {
			logger.Info("log level changed",
				slog.String("from", lv.Level().String()),
				slog.String("to", cfg.App.LogLevel.String()))
			lv.Set(cfg.App.LogLevel)
		}
	}, logger)
	if err != nil {
		// Hot reload is optional; keep running without it.
		logger.Warn("config watcher unavailable", slog.String("error", err.Error()))
		<-ctx.Done()
	}
	return nil
}

// Run starts the browser view with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger, levelVar := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend_url", cfg.Backend.BaseURL),
		slog.Duration("backend_timeout", cfg.Backend.Timeout),
		slog.Duration("search_debounce", cfg.UI.SearchDebounce),
		slog.String("log_level", cfg.App.LogLevel.String()))

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}

	client := newBackend(cfg, logger)
	hub := sse.NewHub(controller.Snapshot{})
	ctrl := controller.New(client, hub, controllerOptions(cfg, logger))

	srv := web.NewServer(ctrl, hub, renderer, client, web.Options{
		DatastarURL: cfg.UI.DatastarURL,
		Logger:      logger,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", srv.Routes())

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return ctrl.Run(gCtx)
	})

	g.Go(func() error {
		return watchConfig(gCtx, app, levelVar, logger)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()

		logger.Info("Shutting down server...")

		// Closing the hub ends open event streams so Shutdown can drain.
		hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunTUI starts the terminal view and blocks until the user quits.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, levelVar, closeLog, err := sideLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	client := newBackend(cfg, logger)
	bridge := tui.NewBridge()
	ctrl := controller.New(client, bridge, controllerOptions(cfg, logger))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return ctrl.Run(gCtx)
	})

	g.Go(func() error {
		return watchConfig(gCtx, app, levelVar, logger)
	})

	g.Go(func() error {
		// Quitting the program stops everything else.
		defer cancel()
		return tui.Run(gCtx, ctrl, bridge)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, levelVar, closeLog, err := sideLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = watchConfig(watchCtx, app, levelVar, logger) }()

	logger.Info("MCP server starting", slog.String("backend_url", cfg.Backend.BaseURL))
	srv := mcpserver.New(newBackend(cfg, logger), logger)
	if err := srv.ServeStdio(); err != nil {
		logger.Error("MCP server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
