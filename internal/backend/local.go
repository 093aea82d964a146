package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/frontmatter"
	"github.com/starford/verbas/internal/models"
	"github.com/starford/verbas/internal/storage"
)

const welcomeBody = `# Welcome to Verbas

This ` + "`base.md`" + ` file was generated in the ` + "`chapters/`" + ` folder.

Use it as the starting point of your book, document or creative project.

You can edit it freely, rename it, or add more chapters from the interface.
`

// Local is the in-process persistence backend over a storage.Provider.
type Local struct {
	fs     storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

var _ Service = (*Local)(nil)

// NewLocal creates a backend that reads and writes through fs.
func NewLocal(fs storage.Provider, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		fs:     fs,
		logger: logger.With(slog.String("component", "backend")),
		now:    time.Now,
	}
}

// ProjectFilePath returns the canonical project-file path for a project
// named name living in directory.
func ProjectFilePath(directory, name string) string {
	return filepath.Join(directory, name+"."+models.ProjectExt)
}

// CreateNewProject scaffolds the structure folders, the base chapter and the
// project file. An existing directory is never overwritten.
func (l *Local) CreateNewProject(ctx context.Context, name, directory string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: project name %q", apperr.ErrInvalidProject, name)
	}
	exists, err := l.fs.Exists(directory)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("directory %s: %w", directory, apperr.ErrAlreadyExists)
	}

	now := l.now()
	cfg := models.NewProjectConfig(name, now)
	for _, dir := range cfg.Structure.Dirs() {
		if err := l.fs.MkdirAll(filepath.Join(directory, dir)); err != nil {
			return fmt.Errorf("failed to create folder %q: %w", dir, err)
		}
	}

	stamp := now.UTC().Format(time.RFC3339)
	base, err := frontmatter.Render(frontmatter.ChapterMeta{
		Title:     "Base chapter",
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}, welcomeBody)
	if err != nil {
		return fmt.Errorf("render base chapter: %w", err)
	}
	basePath := filepath.Join(directory, cfg.Structure.ChaptersPath, models.BaseChapterFile)
	if err := l.fs.Write(basePath, []byte(base)); err != nil {
		return fmt.Errorf("create base chapter: %w", err)
	}

	l.logger.Info("project created", slog.String("name", name), slog.String("directory", directory))
	return l.SaveProject(ctx, ProjectFilePath(directory, name), cfg)
}

// LoadProject reads and validates the project file at path.
func (l *Local) LoadProject(ctx context.Context, path string) (models.ProjectConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.ProjectConfig{}, err
	}
	data, err := l.read(path)
	if err != nil {
		return models.ProjectConfig{}, err
	}
	cfg, err := DecodeProjectFile(data)
	if err != nil {
		return models.ProjectConfig{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// SaveProject writes cfg to path as indented JSON.
func (l *Local) SaveProject(ctx context.Context, path string, cfg models.ProjectConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidProject, err)
	}
	data, err := EncodeProjectFile(cfg)
	if err != nil {
		return err
	}
	if err := l.fs.Write(path, data); err != nil {
		return err
	}
	l.logger.Debug("project saved", slog.String("path", path))
	return nil
}

// SaveProjectAs writes cfg to a new project-file path.
func (l *Local) SaveProjectAs(ctx context.Context, newPath string, cfg models.ProjectConfig) error {
	if !strings.HasSuffix(newPath, "."+models.ProjectExt) {
		return fmt.Errorf("%w: %s is not a .%s file", apperr.ErrInvalidPath, newPath, models.ProjectExt)
	}
	return l.SaveProject(ctx, newPath, cfg)
}

// SaveMarkdownFile writes chapter content verbatim.
func (l *Local) SaveMarkdownFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.fs.Write(path, []byte(content)); err != nil {
		return err
	}
	l.logger.Debug("markdown saved", slog.String("path", path), slog.String("preview", preview(content, 100)))
	return nil
}

// LoadMarkdownFile returns chapter content verbatim.
func (l *Local) LoadMarkdownFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := l.read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CloneProject copies the directory holding originalPath into newFolderPath
// and returns the project-file path inside the copy.
func (l *Local) CloneProject(ctx context.Context, originalPath, newFolderPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := l.read(originalPath); err != nil {
		return "", err
	}
	srcDir := filepath.Dir(originalPath)
	dst := filepath.Join(newFolderPath, filepath.Base(srcDir))
	if err := l.fs.CopyTree(srcDir, dst); err != nil {
		return "", err
	}
	newPath := filepath.Join(dst, filepath.Base(originalPath))
	l.logger.Info("project cloned", slog.String("from", originalPath), slog.String("to", newPath))
	return newPath, nil
}

// RepackProject zips the directory holding projectPath into targetZipPath.
func (l *Local) RepackProject(ctx context.Context, projectPath, targetZipPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := l.read(projectPath); err != nil {
		return err
	}
	if err := l.fs.Zip(filepath.Dir(projectPath), targetZipPath); err != nil {
		return err
	}
	l.logger.Info("project repacked", slog.String("project", projectPath), slog.String("zip", targetZipPath))
	return nil
}

// DeleteProject removes the project file.
func (l *Local) DeleteProject(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.fs.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	return nil
}

// AppName returns the application name.
func (l *Local) AppName(context.Context) (string, error) {
	return AppName, nil
}

func (l *Local) read(path string) ([]byte, error) {
	data, err := l.fs.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
