package project

import (
	"context"

	"github.com/starford/verbas/internal/models"
)

// DialogKind selects the native dialog flavour a Prompter should present.
type DialogKind string

const (
	DialogSave      DialogKind = "save"
	DialogOpen      DialogKind = "open"
	DialogDirectory DialogKind = "directory"
)

// Filter restricts selectable files by extension.
type Filter struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// Dialog describes one user prompt.
type Dialog struct {
	Kind        DialogKind `json:"kind"`
	Title       string     `json:"title"`
	DefaultPath string     `json:"default_path,omitempty"`
	Filters     []Filter   `json:"filters,omitempty"`
}

// Prompter asks the user for a path. An empty answer or apperr.ErrCancelled
// means the user cancelled.
type Prompter interface {
	Ask(ctx context.Context, d Dialog) (string, error)
}

var (
	projectFilter = Filter{Name: "Verbas Project", Extensions: []string{models.ProjectExt}}
	zipFilter     = Filter{Name: "ZIP Archive", Extensions: []string{"zip"}}
)

func newProjectDialog() Dialog {
	return Dialog{Kind: DialogSave, Title: "Create new project", DefaultPath: "NewProject"}
}

func openProjectDialog() Dialog {
	return Dialog{Kind: DialogOpen, Title: "Open project", Filters: []Filter{projectFilter}}
}

func saveAsDialog(name string) Dialog {
	return Dialog{
		Kind:        DialogSave,
		Title:       "Save project as",
		DefaultPath: name + "." + models.ProjectExt,
		Filters:     []Filter{projectFilter},
	}
}

func cloneDialog() Dialog {
	return Dialog{Kind: DialogDirectory, Title: "Clone project into"}
}

func repackDialog() Dialog {
	return Dialog{
		Kind:        DialogSave,
		Title:       "Export project as zip",
		DefaultPath: "verbas_project.zip",
		Filters:     []Filter{zipFilter},
	}
}
