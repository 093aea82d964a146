// Package theme persists the presentation theme preference and loads the
// stylesheet of the active theme.
package theme

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/starford/verbas/internal/apperr"
)

// FileName is the preference file inside the state directory.
const FileName = "theme.yaml"

// Defaults.
const (
	DefaultTheme = "forest"
)

// DefaultThemes are the themes shipped with the editor.
var DefaultThemes = []string{"forest", "nord"}

// Preference is the on-disk preference document.
type Preference struct {
	Theme string `yaml:"theme"`
}

// Store holds the active theme and persists changes.
type Store struct {
	path    string
	allowed []string
	logger  *slog.Logger

	mu      sync.Mutex
	current string
	subs    map[int]func(string)
	nextID  int
}

// NewStore loads the preference from stateDir, falling back to def when the
// file is missing or names a theme outside allowed.
func NewStore(stateDir string, allowed []string, def string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(allowed) == 0 {
		allowed = DefaultThemes
	}
	if def == "" {
		def = DefaultTheme
	}
	if !slices.Contains(allowed, def) {
		return nil, fmt.Errorf("theme: default %q not in %v: %w", def, allowed, apperr.ErrInvalidInput)
	}
	stateDir, err := filepath.Abs(stateDir)
	if err != nil {
		return nil, fmt.Errorf("theme: state dir: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("theme: state dir: %w", err)
	}
	s := &Store{
		path:    filepath.Join(stateDir, FileName),
		allowed: slices.Clone(allowed),
		logger:  logger.With(slog.String("component", "theme")),
		current: def,
		subs:    make(map[int]func(string)),
	}
	theme, err := s.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		s.logger.Warn("theme preference ignored", slog.String("path", s.path), slog.String("error", err.Error()))
	default:
		s.current = theme
	}
	return s, nil
}

// Path returns the preference file path.
func (s *Store) Path() string { return s.path }

// Allowed returns the selectable themes.
func (s *Store) Allowed() []string { return slices.Clone(s.allowed) }

// Current returns the active theme.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set validates, persists and activates theme. Subscribers run when the
// value changed.
func (s *Store) Set(theme string) error {
	if err := s.validate(theme); err != nil {
		return err
	}
	data, err := yaml.Marshal(Preference{Theme: theme})
	if err != nil {
		return fmt.Errorf("theme: encode: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("theme: write %s: %w", s.path, err)
	}
	s.apply(theme)
	return nil
}

// Subscribe registers fn for theme changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(theme string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// reload re-reads the file after an external edit.
func (s *Store) reload() {
	theme, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("theme reload failed", slog.String("error", err.Error()))
		}
		return
	}
	s.apply(theme)
}

func (s *Store) apply(theme string) {
	s.mu.Lock()
	if s.current == theme {
		s.mu.Unlock()
		return
	}
	s.current = theme
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Info("theme changed", slog.String("theme", theme))
	for _, fn := range subs {
		fn(theme)
	}
}

func (s *Store) read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	var p Preference
	if err := yaml.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("parse %s: %w", s.path, err)
	}
	if err := s.validate(p.Theme); err != nil {
		return "", err
	}
	return p.Theme, nil
}

func (s *Store) validate(theme string) error {
	allowed := make([]any, len(s.allowed))
	for i, a := range s.allowed {
		allowed[i] = a
	}
	if err := validation.Validate(theme, validation.Required, validation.In(allowed...)); err != nil {
		return fmt.Errorf("theme %q: %v: %w", theme, err, apperr.ErrInvalidInput)
	}
	return nil
}
