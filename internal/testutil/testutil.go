// Package testutil provides shared test helpers: sandboxes, databases and
// recording fakes for the persistence backend, notifications and the editor.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/verbas/internal/models"
	"github.com/starford/verbas/internal/notify"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/storage"
)

// Logger returns a logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// TestDB creates a temporary recent-projects database that is automatically
// cleaned up.
func TestDB(t *testing.T) *recent.DB {
	t.Helper()
	db, err := recent.Open(filepath.Join(t.TempDir(), "recent.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary sandbox directory with a storage.FS.
func TestRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, fs
}

// Shown is one recorded notification.
type Shown struct {
	Message string
	Kind    notify.Kind
}

// Notifier records every Show call.
type Notifier struct {
	mu    sync.Mutex
	shown []Shown
}

var _ notify.Notifier = (*Notifier)(nil)

func (n *Notifier) Show(message string, kind notify.Kind, duration time.Duration) notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, Shown{Message: message, Kind: kind})
	return notify.Notification{Message: message, Kind: kind, Visible: true, Opacity: 1, For: duration}
}

// Shown returns the recorded notifications.
func (n *Notifier) Shown() []Shown {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Shown(nil), n.shown...)
}

// Sink records notify.Sink transitions.
type Sink struct {
	mu     sync.Mutex
	events []string
}

func (s *Sink) Shown(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "shown:"+n.Message)
}

func (s *Sink) Hidden(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "hidden:"+n.Message)
}

// Events returns the recorded transitions.
func (s *Sink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// Editor is a controllable stand-in for the editor lifecycle manager.
type Editor struct {
	mu      sync.Mutex
	ready   bool
	content string
	absent  bool
	sources []string
}

// NewEditor returns a ready editor holding content.
func NewEditor(content string) *Editor {
	return &Editor{ready: true, content: content}
}

// SetReady toggles readiness.
func (e *Editor) SetReady(ready bool) {
	e.mu.Lock()
	e.ready = ready
	e.mu.Unlock()
}

// SetAbsent makes Content report no content even when ready.
func (e *Editor) SetAbsent(absent bool) {
	e.mu.Lock()
	e.absent = absent
	e.mu.Unlock()
}

func (e *Editor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *Editor) Content(context.Context) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready || e.absent {
		return "", false
	}
	return e.content, true
}

// SetSource records the pushed source and makes it the content.
func (e *Editor) SetSource(source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, source)
	e.content = source
	return nil
}

// Sources returns every source pushed into the editor.
func (e *Editor) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sources...)
}

// Config returns a valid project config named name.
func Config(name string) models.ProjectConfig {
	return models.NewProjectConfig(name, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
}
