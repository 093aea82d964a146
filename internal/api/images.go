package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/verbas/internal/session"
	"github.com/starford/verbas/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ImageHandler accepts image uploads into the loaded project's images folder.
type ImageHandler struct {
	session func() session.Session
	files   storage.Provider
	logger  *slog.Logger
}

// NewImageHandler creates a handler writing through files.
func NewImageHandler(current func() session.Session, files storage.Provider, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{session: current, files: files, logger: logger}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// Upload handles POST /api/project/images (multipart/form-data, field "file").
//
//	@Summary		Upload an image into the project
//	@Tags			project
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Image"
//	@Success		201		{object}	ImageUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/images [post]
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := h.session()
	if sess.Empty() {
		writeJSON(w, http.StatusConflict, errorBody("no project loaded"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	rel := path.Join(sess.Config.Structure.ImagesPath, name)
	written, err := h.files.WriteFrom(filepath.Join(sess.Dir(), filepath.FromSlash(rel)), file)
	if err != nil {
		h.logger.Error("image upload failed", slog.String("file", name), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ImageUploadResponse{
		Filename: name,
		Size:     written,
		Path:     rel,
	})
}
