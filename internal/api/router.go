package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/verbas/internal/backend"
	"github.com/starford/verbas/internal/recent"
	"github.com/starford/verbas/internal/storage"
)

// Deps are the components served by the router. Backend is required; the
// authoring routes are only mounted when Workflows is set, so a pure
// persistence server can run with Backend alone.
type Deps struct {
	Backend   backend.Service
	Workflows Workflows
	Editor    Editor
	Themes    Themes
	Recent    recent.List
	// Files is the storage image uploads are written through.
	Files storage.Provider
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
	Logger *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With(slog.String("component", "api"))

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Persistence RPC.
	ch := NewCommandHandler(d.Backend, d.Logger)
	r.Post("/commands/{name}", ch.Invoke)

	if d.Workflows != nil {
		h := NewHandler(d)

		r.Get("/project", h.GetSession)
		r.Post("/project/{workflow}", h.RunWorkflow)

		if d.Files != nil {
			ih := NewImageHandler(d.Workflows.Session, d.Files, d.Logger)
			r.Post("/project/images", ih.Upload)
		}
		if d.Editor != nil {
			r.Get("/editor", h.GetEditor)
			r.Put("/editor", h.PutEditor)
		}
		if d.Themes != nil {
			r.Get("/editor/theme", h.GetTheme)
			r.Put("/editor/theme", h.PutTheme)
		}
		if d.Recent != nil {
			r.Get("/recent", h.ListRecent)
			r.Delete("/recent", h.ForgetRecent)
		}
	}

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
