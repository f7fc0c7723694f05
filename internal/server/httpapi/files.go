package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/go-chi/chi/v5"
)

// FileHandler serves the file lifecycle endpoints.
type FileHandler struct {
	files  FileAPI
	logger logging.Logger
}

func NewFileHandler(files FileAPI, logger logging.Logger) *FileHandler {
	return &FileHandler{
		files:  files,
		logger: logger.With("module", "http_files"),
	}
}

type renameRequest struct {
	FileIDs []string `json:"file_ids"`
	NewName string   `json:"new_name"`
}

func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	renamed, err := h.files.RenameFiles(r.Context(), userID(r.Context()), req.FileIDs, req.NewName)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(req.FileIDs, renamed))
}

type deleteRequest struct {
	FileIDs []string `json:"file_ids"`
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	deleted, err := h.files.DeleteFiles(r.Context(), userID(r.Context()), req.FileIDs)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(req.FileIDs, deleted))
}

type statusRequest struct {
	FileIDs []string `json:"file_ids"`
	Status  string   `json:"status"`
}

func (h *FileHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	changed, err := h.files.ChangeStatus(r.Context(), userID(r.Context()), req.FileIDs, models.FileStatus(req.Status))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(req.FileIDs, changed))
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.files.ListFiles(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	if items == nil {
		items = []models.FileListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Upload accepts multipart form data with a "file" part. An optional
// "file_id" form value appends a version to an existing file; "encrypted"
// marks client-side encrypted content.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(r.Context(), w, h.logger, fmt.Errorf("%w: malformed multipart body", common.ErrorValidation))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, h.logger, fmt.Errorf("%w: missing file part", common.ErrorValidation))
		return
	}
	defer part.Close()

	file, version, err := h.files.Upload(r.Context(),
		userID(r.Context()),
		r.FormValue("file_id"),
		header.Filename,
		part,
		r.FormValue("encrypted") == "true")
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"file_id":    file.ID,
		"version_id": version.ID,
		"size_bytes": version.SizeBytes,
		"sha256":     version.Sha256,
		"status":     file.Status,
	})
}

// Download streams the current version's blob. Encrypted versions require
// the key query parameter; public files need no token.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	key := r.URL.Query().Get("key")

	file, version, rc, err := h.files.Download(r.Context(), userID(r.Context()), fileID, key)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("X-Version-ID", version.ID)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error(r.Context(), "blob streaming failed", "file_id", file.ID, "error", err)
	}
}
