package editor

import (
	"context"
	"log/slog"
	"sync"
)

// State of the Manager.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateReinitializing
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateReinitializing:
		return "reinitializing"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

type request struct {
	gen    uint64
	source string
	theme  string
}

// Manager owns at most one live Widget and recreates it whenever the source
// content or the theme changes.
//
// Requests are coalesced: while a construction is in flight, newer requests
// only bump the generation. When the construction completes for an older
// generation the widget is destroyed unpublished and the latest request is
// built instead. One goroutine builds at a time, so no two widgets coexist.
type Manager struct {
	factory   Factory
	assets    ThemeAssets
	container string
	logger    *slog.Logger

	// use guards callers of the live widget against its destruction.
	use sync.RWMutex

	mu          sync.Mutex
	state       State
	source      string
	theme       string
	gen         uint64
	live        Widget
	liveTheme   string
	building    bool
	cancelBuild context.CancelFunc
	readyCh     chan struct{}
	readyClosed bool
	lastErr     error
	onReady     []func()
}

// NewManager returns an Uninitialized manager. assets may be nil.
func NewManager(container string, factory Factory, assets ThemeAssets, theme string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:   factory,
		assets:    assets,
		container: container,
		theme:     theme,
		logger:    logger.With(slog.String("component", "editor")),
		readyCh:   make(chan struct{}),
	}
}

// Mount constructs the first instance. It is a no-op unless Uninitialized.
func (m *Manager) Mount() error {
	m.mu.Lock()
	switch m.state {
	case StateDestroyed:
		m.mu.Unlock()
		return ErrDestroyed
	case StateUninitialized:
		m.mu.Unlock()
		m.reinit()
		return nil
	}
	m.mu.Unlock()
	return nil
}

// SetSource replaces the document source. An unchanged source is a no-op.
func (m *Manager) SetSource(source string) error {
	return m.change(func() bool {
		if m.source == source {
			return false
		}
		m.source = source
		return true
	})
}

// SetTheme switches the presentation theme. An unchanged theme is a no-op.
func (m *Manager) SetTheme(theme string) error {
	return m.change(func() bool {
		if m.theme == theme {
			return false
		}
		m.theme = theme
		return true
	})
}

// Reload forces a reinitialization with the current source and theme.
func (m *Manager) Reload() error {
	return m.change(func() bool { return true })
}

func (m *Manager) change(apply func() bool) error {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}
	changed := apply()
	mounted := m.state != StateUninitialized
	m.mu.Unlock()
	if changed && mounted {
		m.reinit()
	}
	return nil
}

// reinit moves to Reinitializing: the live widget is destroyed and its theme
// asset released before a replacement is requested.
func (m *Manager) reinit() {
	m.use.Lock()
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		m.use.Unlock()
		return
	}
	m.gen++
	m.state = StateReinitializing
	if m.readyClosed {
		m.readyCh = make(chan struct{})
		m.readyClosed = false
	}
	old, oldTheme := m.live, m.liveTheme
	m.live, m.liveTheme = nil, ""
	if m.cancelBuild != nil {
		m.cancelBuild()
	}
	req := request{gen: m.gen, source: m.source, theme: m.theme}
	start := !m.building
	if start {
		m.building = true
	}
	m.mu.Unlock()

	if old != nil {
		old.Destroy()
		m.releaseAsset(oldTheme)
		m.logger.Debug("editor instance destroyed", slog.String("theme", oldTheme))
	}
	m.use.Unlock()

	if start {
		go m.build(req)
	}
}

func (m *Manager) build(req request) {
	for {
		ctx, cancel := context.WithCancel(context.Background())
		m.mu.Lock()
		if req.gen == m.gen {
			m.cancelBuild = cancel
		} else {
			cancel()
		}
		m.mu.Unlock()

		w, err := m.construct(ctx, req)
		cancel()

		m.mu.Lock()
		m.cancelBuild = nil
		if m.state == StateDestroyed || req.gen != m.gen {
			next := request{gen: m.gen, source: m.source, theme: m.theme}
			destroyed := m.state == StateDestroyed
			if destroyed {
				m.building = false
			}
			m.mu.Unlock()
			if w != nil {
				w.Destroy()
				m.releaseAsset(req.theme)
			}
			m.logger.Debug("stale editor construction discarded", slog.Uint64("generation", req.gen))
			if destroyed {
				return
			}
			req = next
			continue
		}
		m.building = false
		if err != nil {
			m.lastErr = err
			m.mu.Unlock()
			m.logger.Error("editor construction failed", slog.Any("error", err))
			return
		}
		m.live, m.liveTheme = w, req.theme
		m.state = StateReady
		m.lastErr = nil
		close(m.readyCh)
		m.readyClosed = true
		hooks := append([]func(){}, m.onReady...)
		m.mu.Unlock()

		m.logger.Debug("editor ready", slog.Uint64("generation", req.gen), slog.String("theme", req.theme))
		for _, fn := range hooks {
			fn()
		}
		return
	}
}

func (m *Manager) construct(ctx context.Context, req request) (Widget, error) {
	if m.assets != nil && req.theme != "" {
		if err := m.assets.Load(ctx, req.theme); err != nil {
			m.logger.Warn("theme asset not loaded", slog.String("theme", req.theme), slog.Any("error", err))
		}
	}
	w := m.factory(m.container, req.source)
	if err := w.Create(ctx); err != nil {
		w.Destroy()
		m.releaseAsset(req.theme)
		return nil, err
	}
	return w, nil
}

func (m *Manager) releaseAsset(theme string) {
	if m.assets != nil && theme != "" {
		m.assets.Release(theme)
	}
}

// Content returns the live widget's document. ok is false when the manager
// is not Ready or the widget fails to serialize.
func (m *Manager) Content(ctx context.Context) (content string, ok bool) {
	m.use.RLock()
	defer m.use.RUnlock()

	m.mu.Lock()
	w, state := m.live, m.state
	m.mu.Unlock()
	if state != StateReady || w == nil {
		m.logger.Warn("editor not ready to read content", slog.String("state", state.String()))
		return "", false
	}
	content, err := w.Content(ctx)
	if err != nil {
		m.logger.Error("reading editor content", slog.Any("error", err))
		return "", false
	}
	return content, true
}

// Instance returns the live widget, or nil unless Ready. The widget may be
// destroyed by a later reinitialization.
func (m *Manager) Instance() Widget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return nil
	}
	return m.live
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether a fully constructed instance is available.
func (m *Manager) Ready() bool {
	return m.State() == StateReady
}

// Source returns the current source content.
func (m *Manager) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Theme returns the requested theme.
func (m *Manager) Theme() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.theme
}

// Err returns the last construction error, cleared on the next Ready.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// OnReady registers fn to run after every transition to Ready.
func (m *Manager) OnReady(fn func()) {
	m.mu.Lock()
	m.onReady = append(m.onReady, fn)
	m.mu.Unlock()
}

// WaitReady blocks until Ready, the manager is destroyed, or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	for {
		m.mu.Lock()
		state, ch := m.state, m.readyCh
		m.mu.Unlock()
		switch state {
		case StateReady:
			return nil
		case StateDestroyed:
			return ErrDestroyed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Destroy tears down the live instance and moves to Destroyed. Idempotent.
func (m *Manager) Destroy() {
	m.use.Lock()
	defer m.use.Unlock()

	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return
	}
	m.state = StateDestroyed
	m.gen++
	old, oldTheme := m.live, m.liveTheme
	m.live, m.liveTheme = nil, ""
	if m.cancelBuild != nil {
		m.cancelBuild()
	}
	if !m.readyClosed {
		close(m.readyCh)
		m.readyClosed = true
	}
	m.mu.Unlock()

	if old != nil {
		old.Destroy()
		m.releaseAsset(oldTheme)
	}
	m.logger.Debug("editor destroyed")
}
