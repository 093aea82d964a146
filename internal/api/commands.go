package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/backend"
)

const maxCommandBytes = 10 << 20

// CommandHandler exposes a backend.Service as named RPC commands.
type CommandHandler struct {
	svc    backend.Service
	logger *slog.Logger
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(svc backend.Service, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{svc: svc, logger: logger}
}

// Invoke handles POST /api/commands/{name}.
//
//	@Summary		Invoke a persistence command
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Command name"
//	@Success		200		{object}	CommandResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/commands/{name} [post]
func (h *CommandHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	name := chi.URLParam(r, "name")
	dec := json.NewDecoder(r.Body)

	result, err := h.dispatch(r, name, dec)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("command failed", slog.String("command", name), slog.String("error", err.Error()))
		} else {
			h.logger.Debug("command rejected", slog.String("command", name), slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Result: result})
}

func (h *CommandHandler) dispatch(r *http.Request, name string, dec *json.Decoder) (any, error) {
	ctx := r.Context()
	decode := func(v any) error {
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%s: invalid params: %v: %w", name, err, apperr.ErrInvalidInput)
		}
		return nil
	}

	switch name {
	case backend.CmdCreateNewProject:
		var p backend.CreateNewProjectParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, h.svc.CreateNewProject(ctx, p.Name, p.Directory)
	case backend.CmdLoadProject:
		var p backend.PathParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		cfg, err := h.svc.LoadProject(ctx, p.Path)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	case backend.CmdSaveProject:
		var p backend.SaveProjectParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, h.svc.SaveProject(ctx, p.Path, p.Config)
	case backend.CmdSaveProjectAs:
		var p backend.SaveProjectAsParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, h.svc.SaveProjectAs(ctx, p.NewPath, p.Config)
	case backend.CmdSaveMarkdownFile:
		var p backend.SaveMarkdownParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, h.svc.SaveMarkdownFile(ctx, p.Path, p.Content)
	case backend.CmdLoadMarkdownFile:
		var p backend.PathParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		content, err := h.svc.LoadMarkdownFile(ctx, p.Path)
		if err != nil {
			return nil, err
		}
		return content, nil
	case backend.CmdCloneProject:
		var p backend.CloneProjectParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		newPath, err := h.svc.CloneProject(ctx, p.OriginalPath, p.NewFolderPath)
		if err != nil {
			return nil, err
		}
		return newPath, nil
	case backend.CmdRepackProject:
		var p backend.RepackProjectParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, h.svc.RepackProject(ctx, p.ProjectPath, p.TargetZipPath)
	case backend.CmdDeleteProject:
		var p backend.PathParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, h.svc.DeleteProject(ctx, p.Path)
	case backend.CmdAppName:
		return h.svc.AppName(ctx)
	default:
		return nil, fmt.Errorf("unknown command %q: %w", name, apperr.ErrNotFound)
	}
}
