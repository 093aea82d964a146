package api

import (
	"time"

	"github.com/starford/verbas/internal/models"
	"github.com/starford/verbas/internal/project"
	"github.com/starford/verbas/internal/session"
)

// CommandResponse wraps the result of a persistence command.
type CommandResponse struct {
	Result any `json:"result"`
}

// WorkflowRequest supplies the dialog answer for a workflow trigger.
// An empty answer means the user dismissed the dialog.
type WorkflowRequest struct {
	Answer string `json:"answer" example:"/home/me/Books/Novel"`
}

// SessionResponse is the session snapshot.
type SessionResponse struct {
	Path   string                `json:"path,omitempty" example:"/home/me/Books/Novel/Novel.verbas"`
	Config *models.ProjectConfig `json:"config,omitempty"`
}

func sessionResponse(s session.Session) SessionResponse {
	return SessionResponse{Path: s.Path, Config: s.Config}
}

// WorkflowResponse reports how a workflow ended and the resulting session.
type WorkflowResponse struct {
	Status  project.Status  `json:"status" example:"done" validate:"required"`
	Error   string          `json:"error,omitempty"`
	Session SessionResponse `json:"session"`
}

// EditorResponse describes the editor lifecycle state.
type EditorResponse struct {
	State    string `json:"state" example:"ready" validate:"required"`
	Ready    bool   `json:"ready"`
	Theme    string `json:"theme" example:"forest"`
	Content  string `json:"content,omitempty"`
	Checksum string `json:"checksum,omitempty" example:"abc123..."`
}

// EditorSourceRequest replaces the editor source content.
type EditorSourceRequest struct {
	Content string `json:"content" example:"# Chapter one"`
}

// ThemeRequest switches the editor theme.
type ThemeRequest struct {
	Theme string `json:"theme" example:"nord" validate:"required"`
}

// ThemeResponse reports the active theme and the allowed set.
type ThemeResponse struct {
	Theme   string   `json:"theme" example:"nord"`
	Allowed []string `json:"allowed"`
}

// RecentItem is one recently opened project.
type RecentItem struct {
	Path     string    `json:"path" example:"/home/me/Books/Novel/Novel.verbas"`
	Name     string    `json:"name" example:"Novel"`
	OpenedAt time.Time `json:"opened_at"`
}

// RecentResponse wraps the recent projects list.
type RecentResponse struct {
	Projects []RecentItem `json:"projects" validate:"required"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Filename string `json:"filename" example:"cover.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	Path     string `json:"path" example:"images/cover.png" validate:"required"`
}
