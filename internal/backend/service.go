// Package backend implements the persistence service that owns project files
// on disk. The authoring core only talks to it through Service, either
// in-process (Local) or over HTTP (Client).
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/models"
)

// AppName is the value returned by the app_name command.
const AppName = "Verbas"

// Command names as exposed on the RPC surface.
const (
	CmdCreateNewProject = "create_new_project"
	CmdLoadProject      = "load_project"
	CmdSaveProject      = "save_project"
	CmdSaveProjectAs    = "save_project_as"
	CmdSaveMarkdownFile = "save_markdown_file"
	CmdLoadMarkdownFile = "load_markdown_file"
	CmdCloneProject     = "clone_project"
	CmdRepackProject    = "repack_project"
	CmdDeleteProject    = "delete_project"
	CmdAppName          = "app_name"
)

// Service is the persistence backend.
type Service interface {
	CreateNewProject(ctx context.Context, name, directory string) error
	LoadProject(ctx context.Context, path string) (models.ProjectConfig, error)
	SaveProject(ctx context.Context, path string, cfg models.ProjectConfig) error
	SaveProjectAs(ctx context.Context, newPath string, cfg models.ProjectConfig) error
	SaveMarkdownFile(ctx context.Context, path, content string) error
	LoadMarkdownFile(ctx context.Context, path string) (string, error)
	// CloneProject copies the project tree and returns the new project-file path.
	CloneProject(ctx context.Context, originalPath, newFolderPath string) (string, error)
	RepackProject(ctx context.Context, projectPath, targetZipPath string) error
	DeleteProject(ctx context.Context, path string) error
	AppName(ctx context.Context) (string, error)
}

// CommandError is a failure reported by the backend for a named command.
type CommandError struct {
	Command string
	Message string
	// Code carries a sentinel across the wire ("not_found", "already_exists", ...).
	Code string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// Unwrap maps the wire code back to the matching sentinel.
func (e *CommandError) Unwrap() error {
	return sentinelForCode(e.Code)
}

// Error codes used on the wire.
const (
	CodeNotFound       = "not_found"
	CodeAlreadyExists  = "already_exists"
	CodeInvalidPath    = "invalid_path"
	CodeInvalidProject = "invalid_project"
	CodeInvalidInput   = "invalid_input"
	CodeInternal       = "internal"
)

// CodeFor classifies err into a wire code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, apperr.ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, apperr.ErrInvalidPath):
		return CodeInvalidPath
	case errors.Is(err, apperr.ErrInvalidProject):
		return CodeInvalidProject
	case errors.Is(err, apperr.ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

func sentinelForCode(code string) error {
	switch code {
	case CodeNotFound:
		return apperr.ErrNotFound
	case CodeAlreadyExists:
		return apperr.ErrAlreadyExists
	case CodeInvalidPath:
		return apperr.ErrInvalidPath
	case CodeInvalidProject:
		return apperr.ErrInvalidProject
	case CodeInvalidInput:
		return apperr.ErrInvalidInput
	default:
		return nil
	}
}
