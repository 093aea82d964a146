// Package prompt implements project.Prompter for terminals, HTTP requests and
// scripted runs.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/project"
)

// LineReader is the subset of *liner.State used for dialogs.
type LineReader interface {
	PromptWithSuggestion(prompt, text string, pos int) (string, error)
}

var _ LineReader = (*liner.State)(nil)

// Terminal asks on a line editor, pre-filling the dialog's default path.
// Ctrl-C, Ctrl-D and an empty answer cancel.
type Terminal struct {
	line LineReader
	out  io.Writer
}

var _ project.Prompter = (*Terminal)(nil)

// NewTerminal returns a Terminal prompter writing hints to out.
func NewTerminal(line LineReader, out io.Writer) *Terminal {
	return &Terminal{line: line, out: out}
}

func (t *Terminal) Ask(ctx context.Context, d project.Dialog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(d.Filters) > 0 && t.out != nil {
		exts := []string{}
		for _, f := range d.Filters {
			for _, e := range f.Extensions {
				exts = append(exts, "*."+e)
			}
		}
		fmt.Fprintf(t.out, "(%s)\n", strings.Join(exts, ", "))
	}
	answer, err := t.line.PromptWithSuggestion(label(d), d.DefaultPath, -1)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", apperr.ErrCancelled
		}
		return "", fmt.Errorf("prompt: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func label(d project.Dialog) string {
	switch d.Kind {
	case project.DialogDirectory:
		return d.Title + " (directory): "
	case project.DialogOpen:
		return d.Title + " (file): "
	default:
		return d.Title + ": "
	}
}

// Scripted answers dialogs from a fixed queue and records what was asked.
// An exhausted queue cancels.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	asked   []project.Dialog
}

var _ project.Prompter = (*Scripted)(nil)

// NewScripted returns a prompter answering with answers in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Ask(ctx context.Context, d project.Dialog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, d)
	if len(s.answers) == 0 {
		return "", apperr.ErrCancelled
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

// Push queues more answers.
func (s *Scripted) Push(answers ...string) {
	s.mu.Lock()
	s.answers = append(s.answers, answers...)
	s.mu.Unlock()
}

// Asked returns the dialogs presented so far.
func (s *Scripted) Asked() []project.Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]project.Dialog(nil), s.asked...)
}

type answerKey struct{}

// WithAnswer attaches the answer for the next dialog to ctx.
func WithAnswer(ctx context.Context, answer string) context.Context {
	return context.WithValue(ctx, answerKey{}, answer)
}

// FromContext answers with the value attached by WithAnswer. A missing
// answer cancels.
type FromContext struct{}

var _ project.Prompter = FromContext{}

func (FromContext) Ask(ctx context.Context, _ project.Dialog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer, _ := ctx.Value(answerKey{}).(string)
	if strings.TrimSpace(answer) == "" {
		return "", apperr.ErrCancelled
	}
	return answer, nil
}
