package httpapi

import (
	"net/http"

	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
)

// NotificationHandler serves the notification inbox.
type NotificationHandler struct {
	notifications NotificationAPI
	logger        logging.Logger
}

func NewNotificationHandler(notifications NotificationAPI, logger logging.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger.With("module", "http_notifications"),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.notifications.List(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	if out == nil {
		out = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}

// MarkAllRead clears the inbox; read notifications are not kept.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.Clear(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}
