// Package project orchestrates the project workflows: new, open, save,
// save-as, clone and repack.
//
// Each workflow runs prompt, backend call, session mutation and notification
// as discrete steps. A cancelled prompt ends the workflow silently, a failed
// precondition is a logged no-op, and every caught backend failure produces
// exactly one error notification. The session is only mutated after the
// backend calls it depends on have succeeded.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/frontmatter"
	"github.com/starford/verbas/internal/models"
	"github.com/starford/verbas/internal/notify"
	"github.com/starford/verbas/internal/session"
)

// DefaultName is used when no name can be derived from a destination.
const DefaultName = "Project"

// LoadErrorPlaceholder replaces the editor content when the primary chapter
// cannot be read.
const LoadErrorPlaceholder = "### Error loading " + models.BaseChapterFile

// Editor is the part of the editor lifecycle manager workflows use.
type Editor interface {
	Ready() bool
	Content(ctx context.Context) (string, bool)
	SetSource(source string) error
}

// Recorder remembers opened projects.
type Recorder interface {
	Touch(path, name string, at time.Time) error
}

// Actions runs the project workflows. Workflows are serialized: a second
// workflow waits until the running one finishes.
type Actions struct {
	backend  backend.Service
	store    *session.Store
	editor   Editor
	notifier notify.Notifier
	prompter Prompter

	recent   Recorder
	onLoaded []func(session.Session)
	logger   *slog.Logger
	now      func() time.Time

	sem chan struct{}
}

// Option configures Actions.
type Option func(*Actions)

// WithRecent records every loaded project in r.
func WithRecent(r Recorder) Option {
	return func(a *Actions) { a.recent = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Actions) { a.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Actions) { a.now = now }
}

// OnLoaded registers fn to run after a workflow replaces the session.
func OnLoaded(fn func(session.Session)) Option {
	return func(a *Actions) { a.onLoaded = append(a.onLoaded, fn) }
}

// NewActions wires the workflows to their collaborators.
func NewActions(svc backend.Service, store *session.Store, ed Editor, n notify.Notifier, p Prompter, opts ...Option) *Actions {
	a := &Actions{
		backend:  svc,
		store:    store,
		editor:   ed,
		notifier: n,
		prompter: p,
		logger:   slog.Default(),
		now:      time.Now,
		sem:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("component", "project"))
	return a
}

// Session returns the current session snapshot.
func (a *Actions) Session() session.Session {
	return a.store.Current()
}

// New prompts for a destination, creates the project skeleton there, loads
// it and refreshes the editor.
func (a *Actions) New(ctx context.Context) error {
	return a.run(ctx, "new", func(ctx context.Context) error {
		answer, err := a.ask(ctx, newProjectDialog())
		if err != nil {
			return err
		}
		dir := NormalizePath(answer)
		name := DeriveName(dir)

		if err := a.backend.CreateNewProject(ctx, name, dir); err != nil {
			return a.fail(err, "Error creating project.")
		}
		projectPath := path.Join(dir, name+"."+models.ProjectExt)
		cfg, err := a.backend.LoadProject(ctx, projectPath)
		if err != nil {
			// The skeleton stays on disk.
			return a.fail(err, fmt.Sprintf("Project created in %s but could not be loaded.", dir))
		}
		if err := a.load(ctx, cfg, projectPath); err != nil {
			return err
		}
		a.notifier.Show("Project created successfully!", notify.KindSuccess, 0)
		return nil
	})
}

// Open prompts for a project file and loads it. A failed load leaves the
// previous session intact.
func (a *Actions) Open(ctx context.Context) error {
	return a.run(ctx, "open", func(ctx context.Context) error {
		selected, err := a.ask(ctx, openProjectDialog())
		if err != nil {
			return err
		}
		cfg, err := a.backend.LoadProject(ctx, selected)
		if err != nil {
			return a.fail(err, "Error loading project.")
		}
		if err := a.load(ctx, cfg, selected); err != nil {
			return err
		}
		a.notifier.Show("Project loaded successfully!", notify.KindInfo, 0)
		return nil
	})
}

// Save writes the editor content to the primary chapter and the config to
// the project file. It is refused without backend calls when no project is
// loaded, the editor is not ready, or the content is empty.
func (a *Actions) Save(ctx context.Context) error {
	return a.run(ctx, "save", func(ctx context.Context) error {
		sess := a.store.Current()
		if sess.Empty() {
			return a.refuse(apperr.ErrNoProject)
		}
		if !a.editor.Ready() {
			return a.refuse(apperr.ErrEditorNotReady)
		}
		content, ok := a.editor.Content(ctx)
		if !ok || content == "" {
			return a.refuse(apperr.ErrEmptyContent)
		}

		chapter := sess.ChapterPath(models.BaseChapterFile)
		if err := a.backend.SaveMarkdownFile(ctx, chapter, content); err != nil {
			return a.fail(err, "Error saving project.")
		}
		cfg := sess.Config.Touched(a.now())
		if err := a.backend.SaveProject(ctx, sess.Path, cfg); err != nil {
			return a.fail(err, "Error saving project.")
		}
		if err := a.store.Load(&cfg, sess.Path); err != nil {
			return err
		}
		a.notifier.Show("Project saved successfully!", notify.KindSuccess, 0)
		return nil
	})
}

// SaveAs writes the current config to a new project file and points the
// session at it.
func (a *Actions) SaveAs(ctx context.Context) error {
	return a.run(ctx, "save-as", func(ctx context.Context) error {
		sess := a.store.Current()
		if sess.Empty() {
			return a.refuse(apperr.ErrNoProject)
		}
		answer, err := a.ask(ctx, saveAsDialog(sess.Config.Name))
		if err != nil {
			return err
		}
		newPath := WithProjectExt(NormalizePath(answer))
		if err := a.backend.SaveProjectAs(ctx, newPath, *sess.Config); err != nil {
			return a.fail(err, "Error saving project as "+newPath+".")
		}
		if err := a.store.Load(sess.Config, newPath); err != nil {
			return err
		}
		a.loaded()
		a.notifier.Show("Project saved as "+newPath, notify.KindSuccess, 0)
		return nil
	})
}

// Clone copies the project directory into a chosen folder and loads the copy.
func (a *Actions) Clone(ctx context.Context) error {
	return a.run(ctx, "clone", func(ctx context.Context) error {
		sess := a.store.Current()
		if sess.Empty() {
			return a.refuse(apperr.ErrNoProject)
		}
		dest, err := a.ask(ctx, cloneDialog())
		if err != nil {
			return err
		}
		newPath, err := a.backend.CloneProject(ctx, sess.Path, NormalizePath(dest))
		if err != nil {
			return a.fail(err, "Clone failed!")
		}
		if strings.TrimSpace(newPath) == "" {
			a.logger.Error("clone returned an empty project path", slog.String("destination", dest))
			a.notifier.Show("Clone failed: the backend returned no project path.", notify.KindError, 0)
			return fmt.Errorf("clone_project: empty path: %w", apperr.ErrMalformedResult)
		}
		cfg, err := a.backend.LoadProject(ctx, newPath)
		if err != nil {
			return a.fail(err, "Project cloned to "+newPath+" but could not be loaded.")
		}
		if err := a.load(ctx, cfg, newPath); err != nil {
			return err
		}
		a.notifier.Show("Project cloned", notify.KindSuccess, 0)
		return nil
	})
}

// Repack archives the project directory into a zip file.
func (a *Actions) Repack(ctx context.Context) error {
	return a.run(ctx, "repack", func(ctx context.Context) error {
		sess := a.store.Current()
		if sess.Empty() {
			return a.refuse(apperr.ErrNoProject)
		}
		zipPath, err := a.ask(ctx, repackDialog())
		if err != nil {
			return err
		}
		if err := a.backend.RepackProject(ctx, sess.Path, NormalizePath(zipPath)); err != nil {
			return a.fail(err, "Repack failed!")
		}
		a.notifier.Show("Repack done!", notify.KindSuccess, 0)
		return nil
	})
}

// Refresh reloads the primary chapter into the editor.
func (a *Actions) Refresh(ctx context.Context) error {
	return a.run(ctx, "refresh", func(ctx context.Context) error {
		sess := a.store.Current()
		if sess.Empty() {
			return a.refuse(apperr.ErrNoProject)
		}
		a.refreshDocument(ctx, sess)
		return nil
	})
}

func (a *Actions) run(ctx context.Context, name string, fn func(context.Context) error) error {
	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-a.sem }()

	a.logger.Debug("workflow started", slog.String("workflow", name))
	err := fn(ctx)
	switch {
	case err == nil:
		a.logger.Info("workflow done", slog.String("workflow", name))
	case errors.Is(err, apperr.ErrCancelled):
		a.logger.Debug("workflow cancelled", slog.String("workflow", name))
	case apperr.IsPrecondition(err):
		// already logged by refuse
	default:
		a.logger.Error("workflow failed", slog.String("workflow", name), slog.String("error", err.Error()))
	}
	return err
}

// ask returns apperr.ErrCancelled for an empty answer.
func (a *Actions) ask(ctx context.Context, d Dialog) (string, error) {
	answer, err := a.prompter.Ask(ctx, d)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", apperr.ErrCancelled
	}
	return answer, nil
}

func (a *Actions) refuse(err error) error {
	a.logger.Warn("workflow refused", slog.String("reason", err.Error()))
	return err
}

// fail reports a backend failure with exactly one notification.
func (a *Actions) fail(err error, message string) error {
	a.notifier.Show(message, notify.KindError, 0)
	return err
}

// load replaces the session, records the project and refreshes the editor.
func (a *Actions) load(ctx context.Context, cfg models.ProjectConfig, projectPath string) error {
	if err := a.store.Load(&cfg, projectPath); err != nil {
		return err
	}
	if a.recent != nil {
		if err := a.recent.Touch(projectPath, cfg.Name, a.now()); err != nil {
			a.logger.Warn("recording recent project failed", slog.String("error", err.Error()))
		}
	}
	a.loaded()
	a.refreshDocument(ctx, a.store.Current())
	return nil
}

func (a *Actions) loaded() {
	sess := a.store.Current()
	for _, fn := range a.onLoaded {
		fn(sess)
	}
}

// refreshDocument loads the primary chapter, strips its front matter and
// pushes it into the editor. A read failure shows LoadErrorPlaceholder.
func (a *Actions) refreshDocument(ctx context.Context, sess session.Session) {
	chapter := sess.ChapterPath(models.BaseChapterFile)
	source := LoadErrorPlaceholder
	raw, err := a.backend.LoadMarkdownFile(ctx, chapter)
	if err != nil {
		a.logger.Error("loading primary chapter", slog.String("path", chapter), slog.String("error", err.Error()))
	} else {
		source = frontmatter.Strip(raw)
	}
	if err := a.editor.SetSource(source); err != nil {
		a.logger.Warn("editor refresh skipped", slog.String("error", err.Error()))
	}
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
}

// DeriveName returns the last path segment without the project extension,
// or DefaultName when nothing is left.
func DeriveName(dest string) string {
	p := NormalizePath(dest)
	name := p[strings.LastIndex(p, "/")+1:]
	name = strings.TrimSuffix(name, "."+models.ProjectExt)
	if strings.TrimSpace(name) == "" {
		return DefaultName
	}
	return name
}

// WithProjectExt appends the project extension when missing.
func WithProjectExt(p string) string {
	if strings.HasSuffix(p, "."+models.ProjectExt) {
		return p
	}
	return p + "." + models.ProjectExt
}

// Status classifies a workflow result for surfaces.
type Status string

const (
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusRefused   Status = "refused"
	StatusFailed    Status = "failed"
)

// StatusOf maps a workflow error to its Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusDone
	case errors.Is(err, apperr.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusCancelled
	case apperr.IsPrecondition(err):
		return StatusRefused
	default:
		return StatusFailed
	}
}
