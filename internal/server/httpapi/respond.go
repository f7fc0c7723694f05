// Package httpapi exposes the lifecycle engine over HTTP. Batch endpoints
// answer with the uniform partial-result contract: the caller compares the
// requested and affected counts to tell full success, partial success and
// total failure apart.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/logging"
)

const (
	outcomeOK      = "ok"
	outcomePartial = "partial"
	outcomeFailed  = "failed"
)

// batchResponse reports the result of a batch mutation.
type batchResponse struct {
	Outcome        string   `json:"outcome"`
	RequestedCount int      `json:"requested_count"`
	AffectedCount  int      `json:"affected_count"`
	AffectedIDs    []string `json:"affected_ids"`
}

func newBatchResponse(requested, affected []string) batchResponse {
	resp := batchResponse{
		RequestedCount: len(requested),
		AffectedCount:  len(affected),
		AffectedIDs:    affected,
	}
	switch {
	case len(affected) == len(requested):
		resp.Outcome = outcomeOK
	case len(affected) > 0:
		resp.Outcome = outcomePartial
	default:
		resp.Outcome = outcomeFailed
	}
	if resp.AffectedIDs == nil {
		resp.AffectedIDs = []string{}
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the sentinel errors to HTTP statuses. Internal details
// never reach the client; they go to the logger at the call site.
func writeError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
	case errors.Is(err, common.ErrorUnauthorized):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "access denied"})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrorAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already exists"})
	case errors.Is(err, common.ErrKeyRequired):
		writeJSON(w, http.StatusPreconditionRequired, errorResponse{Error: "decryption key required"})
	default:
		logger.Error(ctx, "request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.ErrorValidation
	}
	return nil
}
