package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/verbas/internal/apperr"
	"github.com/starford/verbas/internal/checksum"
	"github.com/starford/verbas/internal/editor"
	"github.com/starford/verbas/internal/project"
	"github.com/starford/verbas/internal/prompt"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/session"
)

// Workflows is the project workflow surface driven over HTTP.
type Workflows interface {
	Session() session.Session
	New(ctx context.Context) error
	Open(ctx context.Context) error
	Save(ctx context.Context) error
	SaveAs(ctx context.Context) error
	Clone(ctx context.Context) error
	Repack(ctx context.Context) error
}

// Editor is the editor lifecycle surface.
type Editor interface {
	State() editor.State
	Ready() bool
	Theme() string
	Content(ctx context.Context) (string, bool)
	SetSource(source string) error
}

// Themes is the persisted theme preference.
type Themes interface {
	Current() string
	Allowed() []string
	Set(theme string) error
}

// Handler holds the project, editor and preference route handlers.
type Handler struct {
	workflows Workflows
	editor    Editor
	themes    Themes
	recent    recent.List
	logger    *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		workflows: d.Workflows,
		editor:    d.Editor,
		themes:    d.Themes,
		recent:    d.Recent,
		logger:    d.Logger,
	}
}

// RunWorkflow handles POST /api/project/{workflow}.
//
// The dialog of the workflow is answered with the request's "answer" field;
// an empty answer cancels. Workflow failures are reported in the body with
// status 200: they were already surfaced as notifications.
//
//	@Summary		Trigger a project workflow
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			workflow	path		string			true	"Workflow"	Enums(new, open, save, save-as, clone, repack)
//	@Param			body		body		WorkflowRequest	false	"Dialog answer"
//	@Success		200			{object}	WorkflowResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/{workflow} [post]
func (h *Handler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "workflow")
	run, ok := h.workflow(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown workflow"))
		return
	}

	var req WorkflowRequest
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	err := run(prompt.WithAnswer(r.Context(), req.Answer))
	resp := WorkflowResponse{
		Status:  project.StatusOf(err),
		Session: sessionResponse(h.workflows.Session()),
	}
	if err != nil && !errors.Is(err, apperr.ErrCancelled) {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) workflow(name string) (func(context.Context) error, bool) {
	switch name {
	case "new":
		return h.workflows.New, true
	case "open":
		return h.workflows.Open, true
	case "save":
		return h.workflows.Save, true
	case "save-as":
		return h.workflows.SaveAs, true
	case "clone":
		return h.workflows.Clone, true
	case "repack":
		return h.workflows.Repack, true
	default:
		return nil, false
	}
}

// GetSession handles GET /api/project.
//
//	@Summary		Get the loaded project
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Security		BearerAuth
//	@Router			/project [get]
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse(h.workflows.Session()))
}

// GetEditor handles GET /api/editor.
//
//	@Summary		Get the editor state and content
//	@Tags			editor
//	@Produce		json
//	@Success		200	{object}	EditorResponse
//	@Security		BearerAuth
//	@Router			/editor [get]
func (h *Handler) GetEditor(w http.ResponseWriter, r *http.Request) {
	resp := EditorResponse{
		State: h.editor.State().String(),
		Theme: h.editor.Theme(),
	}
	if content, ok := h.editor.Content(r.Context()); ok {
		resp.Ready = true
		resp.Content = content
		resp.Checksum = checksum.String(content)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutEditor handles PUT /api/editor.
//
//	@Summary		Replace the editor source content
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditorSourceRequest	true	"New content"
//	@Success		202		{object}	EditorResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor [put]
func (h *Handler) PutEditor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	var req EditorSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.editor.SetSource(req.Content); err != nil {
		if errors.Is(err, editor.ErrDestroyed) {
			writeJSON(w, http.StatusConflict, errorBody("editor destroyed"))
			return
		}
		h.logger.Error("set editor source failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusAccepted, EditorResponse{
		State: h.editor.State().String(),
		Ready: h.editor.Ready(),
		Theme: h.editor.Theme(),
	})
}

// GetTheme handles GET /api/editor/theme.
//
//	@Summary		Get the editor theme
//	@Tags			editor
//	@Produce		json
//	@Success		200	{object}	ThemeResponse
//	@Security		BearerAuth
//	@Router			/editor/theme [get]
func (h *Handler) GetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: h.themes.Current(), Allowed: h.themes.Allowed()})
}

// PutTheme handles PUT /api/editor/theme.
//
//	@Summary		Switch the editor theme
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ThemeRequest	true	"Theme"
//	@Success		200		{object}	ThemeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor/theme [put]
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.themes.Set(req.Theme); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeError(w, err)
			return
		}
		h.logger.Error("set theme failed", slog.String("theme", req.Theme), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: h.themes.Current(), Allowed: h.themes.Allowed()})
}

// ListRecent handles GET /api/recent.
//
//	@Summary		List recently opened projects
//	@Tags			recent
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	RecentResponse
//	@Security		BearerAuth
//	@Router			/recent [get]
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.recent.List(limit)
	if err != nil {
		h.logger.Error("list recent failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]RecentItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, RecentItem{Path: e.Path, Name: e.Name, OpenedAt: e.OpenedAt})
	}
	writeJSON(w, http.StatusOK, RecentResponse{Projects: items})
}

// ForgetRecent handles DELETE /api/recent?path=...
//
//	@Summary		Remove a project from the recent list
//	@Tags			recent
//	@Param			path	query	string	true	"Project file path"
//	@Success		204		"Removed"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recent [delete]
func (h *Handler) ForgetRecent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	if err := h.recent.Forget(path); err != nil {
		h.logger.Error("forget recent failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
