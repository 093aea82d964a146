package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/models"
)

// Call is one recorded backend invocation.
type Call struct {
	Command string
	Args    []any
}

// Backend records calls and serves them from an in-memory project table.
// Failures can be injected per command.
type Backend struct {
	mu       sync.Mutex
	calls    []Call
	Projects map[string]models.ProjectConfig
	Files    map[string]string
	Fail     map[string]error
	// CloneResult, when set, overrides the path clone_project returns.
	CloneResult *string
}

var _ backend.Service = (*Backend)(nil)

// NewBackend returns an empty recording backend.
func NewBackend() *Backend {
	return &Backend{
		Projects: map[string]models.ProjectConfig{},
		Files:    map[string]string{},
		Fail:     map[string]error{},
	}
}

// Calls returns the recorded invocations.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Commands returns just the command names, in call order.
func (b *Backend) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Command
	}
	return out
}

// Reset forgets recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}

func (b *Backend) record(cmd string, args ...any) error {
	b.calls = append(b.calls, Call{Command: cmd, Args: args})
	return b.Fail[cmd]
}

func (b *Backend) CreateNewProject(_ context.Context, name, directory string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdCreateNewProject, name, directory); err != nil {
		return err
	}
	p := backend.ProjectFilePath(directory, name)
	b.Projects[p] = Config(name)
	b.Files[directory+"/chapters/base.md"] = "+++\ntitle = \"Base chapter\"\n+++\n\n# " + name + "\n"
	return nil
}

func (b *Backend) LoadProject(_ context.Context, path string) (models.ProjectConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdLoadProject, path); err != nil {
		return models.ProjectConfig{}, err
	}
	cfg, ok := b.Projects[path]
	if !ok {
		return models.ProjectConfig{}, fmt.Errorf("%s: %w", path, apperr.ErrNotFound)
	}
	return cfg.Clone(), nil
}

func (b *Backend) SaveProject(_ context.Context, path string, cfg models.ProjectConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdSaveProject, path, cfg); err != nil {
		return err
	}
	b.Projects[path] = cfg.Clone()
	return nil
}

func (b *Backend) SaveProjectAs(_ context.Context, newPath string, cfg models.ProjectConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdSaveProjectAs, newPath, cfg); err != nil {
		return err
	}
	b.Projects[newPath] = cfg.Clone()
	return nil
}

func (b *Backend) SaveMarkdownFile(_ context.Context, path, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdSaveMarkdownFile, path, content); err != nil {
		return err
	}
	b.Files[path] = content
	return nil
}

func (b *Backend) LoadMarkdownFile(_ context.Context, path string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdLoadMarkdownFile, path); err != nil {
		return "", err
	}
	content, ok := b.Files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, apperr.ErrNotFound)
	}
	return content, nil
}

func (b *Backend) CloneProject(_ context.Context, originalPath, newFolderPath string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdCloneProject, originalPath, newFolderPath); err != nil {
		return "", err
	}
	if b.CloneResult != nil {
		return *b.CloneResult, nil
	}
	cfg, ok := b.Projects[originalPath]
	if !ok {
		return "", fmt.Errorf("%s: %w", originalPath, apperr.ErrNotFound)
	}
	newPath := newFolderPath + "/" + cfg.Name + "/" + cfg.Name + "." + models.ProjectExt
	b.Projects[newPath] = cfg.Clone()
	return newPath, nil
}

func (b *Backend) RepackProject(_ context.Context, projectPath, targetZipPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(backend.CmdRepackProject, projectPath, targetZipPath)
}

func (b *Backend) DeleteProject(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(backend.CmdDeleteProject, path); err != nil {
		return err
	}
	delete(b.Projects, path)
	return nil
}

func (b *Backend) AppName(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return backend.AppName, b.record(backend.CmdAppName)
}
