package theme

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Stylesheet is a loaded theme asset.
type Stylesheet struct {
	Theme string
	Path  string
	CSS   []byte
}

// Stylesheets loads milkdown-theme-<theme>.css files from a directory and
// holds at most one at a time.
type Stylesheets struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	active *Stylesheet
}

// NewStylesheets returns a loader reading from dir. An empty dir loads empty
// assets.
func NewStylesheets(dir string, logger *slog.Logger) *Stylesheets {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stylesheets{dir: dir, logger: logger.With(slog.String("component", "stylesheets"))}
}

// FileFor returns the stylesheet path of theme.
func (s *Stylesheets) FileFor(theme string) string {
	return filepath.Join(s.dir, "milkdown-theme-"+theme+".css")
}

// Load replaces the active asset with theme's stylesheet. A missing file is
// logged and yields an empty asset.
func (s *Stylesheets) Load(ctx context.Context, theme string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sheet := &Stylesheet{Theme: theme}
	if s.dir != "" {
		sheet.Path = s.FileFor(theme)
		css, err := os.ReadFile(sheet.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("theme stylesheet missing", slog.String("path", sheet.Path))
		case err != nil:
			return fmt.Errorf("load stylesheet %s: %w", sheet.Path, err)
		default:
			sheet.CSS = css
		}
	}

	s.mu.Lock()
	prev := s.active
	s.active = sheet
	s.mu.Unlock()
	if prev != nil {
		s.logger.Warn("stylesheet replaced without release", slog.String("theme", prev.Theme))
	}
	return nil
}

// Release drops the active asset when it belongs to theme.
func (s *Stylesheets) Release(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.Theme == theme {
		s.active = nil
	}
}

// Active returns the held asset, or nil.
func (s *Stylesheets) Active() *Stylesheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
