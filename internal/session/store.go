// Package session holds the single active project session.
package session

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/verbas/internal/models"
)

// ErrIncomplete is returned by Load when either half of the pair is missing.
var ErrIncomplete = errors.New("session: path and config must be set together")

// Session is a snapshot of the active project. Path is empty iff Config is nil.
type Session struct {
	Path   string                `json:"path"`
	Config *models.ProjectConfig `json:"config"`
}

// Empty reports whether no project is loaded.
func (s Session) Empty() bool {
	return s.Path == "" || s.Config == nil
}

// Dir returns the project directory.
func (s Session) Dir() string {
	if s.Path == "" {
		return ""
	}
	return filepath.Dir(s.Path)
}

// ChapterPath returns <project dir>/<chapters_path>/<file>.
func (s Session) ChapterPath(file string) string {
	if s.Empty() {
		return ""
	}
	return filepath.Join(s.Dir(), s.Config.Structure.ChaptersPath, file)
}

// Store is the single mutation point for the session. Readers always see a
// consistent path/config pair.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *models.ProjectConfig
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Load replaces the session atomically.
func (s *Store) Load(cfg *models.ProjectConfig, path string) error {
	if cfg == nil || strings.TrimSpace(path) == "" {
		return ErrIncomplete
	}
	c := cfg.Clone()
	s.mu.Lock()
	s.cfg = &c
	s.path = path
	s.mu.Unlock()
	return nil
}

// Clear resets to the empty session.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cfg = nil
	s.path = ""
	s.mu.Unlock()
}

// Current returns a snapshot; the config is a copy the caller may keep.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return Session{}
	}
	c := s.cfg.Clone()
	return Session{Path: s.path, Config: &c}
}
