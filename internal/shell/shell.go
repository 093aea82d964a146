// Package shell is the interactive terminal front end. It reads commands on
// a line editor and drives the project workflows, the editor and the theme.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/starford/verbas/internal/editor"
	"github.com/starford/verbas/internal/project"
	"github.com/starford/verbas/internal/prompt"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/session"
)

const (
	mainPrompt = "verbas> "
	editPrompt = "... "
	editEnd    = "."

	// settleTimeout bounds how long a command waits for the editor to
	// finish reinitializing before the next prompt.
	settleTimeout = 5 * time.Second
)

// Line is the subset of *liner.State the shell uses.
type Line interface {
	prompt.LineReader
	Prompt(p string) (string, error)
	AppendHistory(item string)
}

var _ Line = (*liner.State)(nil)

// Workflows are the project workflows the shell triggers.
type Workflows interface {
	Session() session.Session
	New(ctx context.Context) error
	Open(ctx context.Context) error
	Save(ctx context.Context) error
	SaveAs(ctx context.Context) error
	Clone(ctx context.Context) error
	Repack(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// Editor is the editor lifecycle surface.
type Editor interface {
	State() editor.State
	Ready() bool
	Theme() string
	Content(ctx context.Context) (string, bool)
	Instance() editor.Widget
	SetSource(source string) error
	WaitReady(ctx context.Context) error
}

// Themes is the persisted theme preference.
type Themes interface {
	Current() string
	Allowed() []string
	Set(theme string) error
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// Shell is a read-eval-print loop over a Line.
type Shell struct {
	line      Line
	out       io.Writer
	workflows Workflows
	editor    Editor
	themes    Themes
	recent    recent.List
	logger    *slog.Logger

	commands map[string]command
}

// Config holds the collaborators of a Shell. Recent may be nil.
type Config struct {
	Line      Line
	Out       io.Writer
	Workflows Workflows
	Editor    Editor
	Themes    Themes
	Recent    recent.List
	Logger    *slog.Logger
}

// New creates a Shell.
func New(c Config) *Shell {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	s := &Shell{
		line:      c.Line,
		out:       c.Out,
		workflows: c.Workflows,
		editor:    c.Editor,
		themes:    c.Themes,
		recent:    c.Recent,
		logger:    c.Logger.With(slog.String("component", "shell")),
	}
	s.commands = map[string]command{
		"new":     {"new", "create a project and open it", s.workflow(s.workflows.New)},
		"open":    {"open", "open a project file", s.workflow(s.workflows.Open)},
		"save":    {"save", "save the chapter and the project file", s.workflow(s.workflows.Save)},
		"save-as": {"save-as", "save the project file under a new path", s.workflow(s.workflows.SaveAs)},
		"clone":   {"clone", "copy the project into another folder and open the copy", s.workflow(s.workflows.Clone)},
		"repack":  {"repack", "export the project as a zip archive", s.workflow(s.workflows.Repack)},
		"reload":  {"reload", "reload the chapter from disk", s.workflow(s.workflows.Refresh)},
		"show":    {"show", "print the editor content", s.show},
		"edit":    {"edit", "replace the editor content (end with a single '.')", s.edit},
		"theme":   {"theme [name]", "show or switch the editor theme", s.theme},
		"recent":  {"recent", "list recently opened projects", s.listRecent},
		"status":  {"status", "show the loaded project and editor state", s.status},
	}
	return s
}

// errQuit ends Run.
var errQuit = errors.New("quit")

// Run reads and executes commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Type 'help' for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := s.line.Prompt(mainPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("shell: read: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.line.AppendHistory(input)

		if err := s.Exec(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		s.help()
		return nil
	}
	cmd, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	return cmd.run(ctx, args)
}

func (s *Shell) help() {
	names := make([]string, 0, len(s.commands))
	for n := range s.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := s.commands[n]
		fmt.Fprintf(s.out, "  %-14s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(s.out, "  %-14s %s\n", "quit", "leave the shell")
}

// workflow adapts a project workflow to a shell command. Outcomes are
// reported through notifications; only refusals are explained here.
func (s *Shell) workflow(run func(context.Context) error) func(context.Context, []string) error {
	return func(ctx context.Context, _ []string) error {
		err := run(ctx)
		switch project.StatusOf(err) {
		case project.StatusRefused:
			fmt.Fprintf(s.out, "nothing done: %v\n", err)
		case project.StatusFailed:
			s.logger.Debug("workflow failed", slog.String("error", err.Error()))
		}
		s.settle(ctx)
		return nil
	}
}

// settle waits for a pending editor reinitialization so the next command
// sees the new document.
func (s *Shell) settle(ctx context.Context) {
	if s.editor.State() != editor.StateReinitializing {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := s.editor.WaitReady(ctx); err != nil {
		s.logger.Warn("editor still not ready", slog.String("error", err.Error()))
	}
}

func (s *Shell) show(ctx context.Context, _ []string) error {
	content, ok := s.editor.Content(ctx)
	if !ok {
		fmt.Fprintf(s.out, "editor is %s\n", s.editor.State())
		return nil
	}
	fmt.Fprintln(s.out, content)
	return nil
}

// edit reads lines until a single "." and replaces the editor content. A
// live Buffer is edited in place; otherwise the source is replaced, which
// reinitializes the editor.
func (s *Shell) edit(ctx context.Context, _ []string) error {
	var lines []string
	for {
		l, err := s.line.Prompt(editPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, "edit discarded")
				return nil
			}
			return err
		}
		if l == editEnd {
			break
		}
		lines = append(lines, l)
	}
	text := strings.Join(lines, "\n")

	if buf, ok := s.editor.Instance().(*editor.Buffer); ok {
		if err := buf.SetText(text); err == nil {
			return nil
		}
	}
	if err := s.editor.SetSource(text); err != nil {
		return err
	}
	s.settle(ctx)
	return nil
}

func (s *Shell) theme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "theme: %s (available: %s)\n", s.themes.Current(), strings.Join(s.themes.Allowed(), ", "))
		return nil
	}
	if err := s.themes.Set(args[0]); err != nil {
		return err
	}
	s.settle(ctx)
	return nil
}

func (s *Shell) listRecent(_ context.Context, _ []string) error {
	if s.recent == nil {
		fmt.Fprintln(s.out, "no recent list")
		return nil
	}
	entries, err := s.recent.List(0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "no recent projects")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "  %-20s %s  %s\n", e.Name, e.OpenedAt.Local().Format("2006-01-02 15:04"), e.Path)
	}
	return nil
}

func (s *Shell) status(_ context.Context, _ []string) error {
	sess := s.workflows.Session()
	if sess.Empty() {
		fmt.Fprintln(s.out, "project: none")
	} else {
		fmt.Fprintf(s.out, "project: %s (%s)\n", sess.Config.Name, sess.Path)
	}
	fmt.Fprintf(s.out, "editor:  %s\n", s.editor.State())
	fmt.Fprintf(s.out, "theme:   %s\n", s.editor.Theme())
	return nil
}
