package httpapi

import (
	"net/http"

	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
)

// ShareHandler serves share grant and removal.
type ShareHandler struct {
	shares ShareAPI
	logger logging.Logger
}

func NewShareHandler(shares ShareAPI, logger logging.Logger) *ShareHandler {
	return &ShareHandler{
		shares: shares,
		logger: logger.With("module", "http_shares"),
	}
}

type addShareRequest struct {
	FileID     string `json:"file_id"`
	GranteeID  string `json:"grantee_id"`
	Permission string `json:"permission"`
}

func (h *ShareHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addShareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	err := h.shares.AddShare(r.Context(), userID(r.Context()), req.FileID, req.GranteeID, models.SharePermission(req.Permission))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type removeSharesRequest struct {
	FileIDs   []string `json:"file_ids"`
	GranteeID string   `json:"grantee_id,omitempty"`
}

func (h *ShareHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req removeSharesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	affected, err := h.shares.RemoveShares(r.Context(), userID(r.Context()), req.FileIDs, req.GranteeID)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(req.FileIDs, affected))
}

func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	fileIDs := r.URL.Query()["file_id"]

	out, err := h.shares.ListShares(r.Context(), userID(r.Context()), fileIDs)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	if out == nil {
		out = []models.Share{}
	}
	writeJSON(w, http.StatusOK, out)
}
