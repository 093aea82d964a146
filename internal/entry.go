// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"

	"github.com/starford/verbas/internal/api"
	"github.com/starford/verbas/internal/applog"
	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/mcpserver"
	"github.com/starford/verbas/internal/project"
	"github.com/starford/verbas/internal/prompt"
	"github.com/starford/verbas/internal/session"
	"github.com/starford/verbas/internal/shell"
	"github.com/starford/verbas/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closer, err := app.logger(app.stdout, applog.FormatJSON)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend_mode", cfg.Backend.Mode),
		slog.String("state_dir", cfg.Workspace.StateDir),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.String("version", app.version))

	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	c, err := newCore(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	c.editor.OnReady(func() {
		broker.Publish(sse.Event{Type: sse.EventEditorReady, Data: map[string]string{
			"theme": c.editor.Theme(),
		}})
	})
	if err := c.editor.Mount(); err != nil {
		return fmt.Errorf("mount editor: %w", err)
	}

	actions := c.actions(prompt.FromContext{}, logger, project.OnLoaded(func(s session.Session) {
		if s.Empty() {
			return
		}
		broker.Publish(sse.Event{Type: sse.EventProjectLoaded, Data: map[string]string{
			"path": s.Path,
			"name": s.Config.Name,
		}})
	}))

	deps := api.Deps{
		Backend:   c.backend,
		Workflows: actions,
		Editor:    c.editor,
		Themes:    c.themes,
		Recent:    c.recent,
		Events:    broker,
		Logger:    logger,
	}
	if c.files != nil {
		deps.Files = c.files
	}
	apiRouter := api.NewRouter(deps, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Pick up theme changes made by other processes sharing the state dir.
	g.Go(func() error {
		if err := c.themes.Watch(gCtx); err != nil {
			logger.Warn("theme watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been asked to stop.
var errShutdown = errors.New("shutdown")

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// RunShell starts the interactive authoring shell on the terminal.
func RunShell(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// stdout belongs to the shell.
	logger, closer, err := app.logger(app.stderr, applog.FormatText)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	c, err := newCore(cfg, logger, shell.NewPrinter(app.stdout))
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.editor.Mount(); err != nil {
		return fmt.Errorf("mount editor: %w", err)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := cfg.Workspace.HistoryFile()
	if err := shell.LoadHistory(line, history); err != nil {
		logger.Warn("history not loaded", slog.String("error", err.Error()))
	}
	defer func() {
		if err := shell.SaveHistory(line, history); err != nil {
			logger.Warn("history not saved", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := c.themes.Watch(ctx); err != nil {
			logger.Warn("theme watcher stopped", slog.String("error", err.Error()))
		}
	}()

	sh := shell.New(shell.Config{
		Line:      line,
		Out:       app.stdout,
		Workflows: c.actions(prompt.NewTerminal(line, app.stdout), logger),
		Editor:    c.editor,
		Themes:    c.themes,
		Recent:    c.recent,
		Logger:    logger,
	})
	return sh.Run(ctx)
}

// RunMCP serves the chapter tools over MCP on stdio.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// stdout carries the protocol.
	logger, closer, err := app.logger(app.stderr, applog.FormatJSON)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	svc, files, err := newBackend(cfg.Backend, logger)
	if err != nil {
		return err
	}

	mcpOpts := []mcpserver.Option{mcpserver.WithLogger(logger)}
	if files != nil {
		mcpOpts = append(mcpOpts, mcpserver.WithFiles(files))
	}
	if db, err := openRecent(cfg.Workspace); err != nil {
		logger.Warn("recent projects unavailable", slog.String("error", err.Error()))
	} else {
		defer db.Close()
		mcpOpts = append(mcpOpts, mcpserver.WithRecent(db))
	}

	logger.Info("Starting MCP server", slog.String("backend_mode", cfg.Backend.Mode))
	return mcpserver.New(svc, app.version, mcpOpts...).ServeStdio()
}

// StoreToken saves the bearer token for the configured remote backend in
// the OS keyring.
func StoreToken(cfg *Config, token string) error {
	if !cfg.Backend.Remote() {
		return fmt.Errorf("backend mode is %q, tokens apply to remote backends", cfg.Backend.Mode)
	}
	return backend.KeyringTokens{}.Set(cfg.Backend.URL, token)
}

// ForgetToken removes the stored token for the configured remote backend.
func ForgetToken(cfg *Config) error {
	if !cfg.Backend.Remote() {
		return fmt.Errorf("backend mode is %q, tokens apply to remote backends", cfg.Backend.Mode)
	}
	return backend.KeyringTokens{}.Delete(cfg.Backend.URL)
}
