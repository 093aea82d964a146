// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidProject = errors.New("invalid project")
	ErrInvalidInput   = errors.New("invalid input")
)

// Workflow outcomes that are not backend failures.
var (
	// ErrCancelled means the user declined a dialog. It is a silent termination.
	ErrCancelled = errors.New("cancelled by user")
	// ErrNoProject means the workflow requires a loaded session.
	ErrNoProject = errors.New("no project loaded")
	// ErrEditorNotReady means the editor is not constructed or is reinitializing.
	ErrEditorNotReady = errors.New("editor not ready")
	// ErrEmptyContent means the editor returned no content to persist.
	ErrEmptyContent = errors.New("empty content")
	// ErrMalformedResult means the backend reported success with unusable data.
	ErrMalformedResult = errors.New("malformed backend result")
)

// IsPrecondition reports whether err is a local precondition failure
// (no backend call was made and no notification is due).
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoProject) ||
		errors.Is(err, ErrEditorNotReady) ||
		errors.Is(err, ErrEmptyContent)
}
