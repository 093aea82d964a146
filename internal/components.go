package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/verbas/internal/applog"
	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/editor"
	"github.com/starford/verbas/internal/notify"
	"github.com/starford/verbas/internal/project"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/session"
	"github.com/starford/verbas/internal/storage"
	"github.com/starford/verbas/internal/theme"
)

// editorContainer is the mount point name handed to editor widgets.
const editorContainer = "#editor"

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the process logger. defaultFormat applies when the config
// leaves log_format empty.
func (a *application) logger(out io.Writer, defaultFormat string) (*slog.Logger, io.Closer, error) {
	format := a.config.App.LogFormat
	if format == "" {
		format = defaultFormat
	}
	logger, closer, err := applog.New(applog.Options{
		Level:  a.config.App.LogLevel,
		Format: format,
		File:   a.config.App.LogFile,
		Out:    out,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// newBackend returns the configured persistence backend. files is nil in
// remote mode.
func newBackend(cfg BackendConfig, logger *slog.Logger) (svc backend.Service, files *storage.FS, err error) {
	if cfg.Remote() {
		token, err := backend.ResolveToken(backend.KeyringTokens{}, cfg.URL, cfg.Token)
		if err != nil {
			// An unreachable keyring only costs us the token.
			logger.Warn("keyring lookup failed", slog.String("error", err.Error()))
		}
		return backend.NewClient(cfg.URL, token), nil, nil
	}
	files, err = storage.NewFS(cfg.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	return backend.NewLocal(files, logger), files, nil
}

// core is everything the authoring surfaces share.
type core struct {
	backend  backend.Service
	files    *storage.FS
	recent   *recent.DB
	themes   *theme.Store
	editor   *editor.Manager
	notifier *notify.Service
	sessions *session.Store
}

func newCore(cfg *Config, logger *slog.Logger, sinks ...notify.Sink) (*core, error) {
	svc, files, err := newBackend(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}

	db, err := openRecent(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	themes, err := theme.NewStore(cfg.Workspace.StateDir, cfg.Editor.Themes, cfg.Editor.DefaultTheme, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init theme store: %w", err)
	}

	mgr := editor.NewManager(editorContainer,
		editor.BufferFactory(cfg.Editor.ConstructDelay),
		theme.NewStylesheets(cfg.Editor.ThemesDir, logger),
		themes.Current(),
		logger,
	)
	themes.Subscribe(func(name string) {
		if err := mgr.SetTheme(name); err != nil && !errors.Is(err, editor.ErrDestroyed) {
			logger.Error("editor theme switch failed", slog.String("error", err.Error()))
		}
	})

	n := notify.New(notify.Options{Duration: cfg.Notify.Duration, Fade: cfg.Notify.Fade}, logger, sinks...)

	return &core{
		backend:  svc,
		files:    files,
		recent:   db,
		themes:   themes,
		editor:   mgr,
		notifier: n,
		sessions: session.NewStore(),
	}, nil
}

func openRecent(ws WorkspaceConfig) (*recent.DB, error) {
	if err := os.MkdirAll(ws.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := recent.Open(ws.RecentDB())
	if err != nil {
		return nil, fmt.Errorf("init recent projects: %w", err)
	}
	return db, nil
}

func (c *core) actions(p project.Prompter, logger *slog.Logger, opts ...project.Option) *project.Actions {
	opts = append([]project.Option{
		project.WithRecent(c.recent),
		project.WithLogger(logger),
	}, opts...)
	return project.NewActions(c.backend, c.sessions, c.editor, c.notifier, p, opts...)
}

func (c *core) Close() {
	c.editor.Destroy()
	c.notifier.Close()
	c.recent.Close()
}
