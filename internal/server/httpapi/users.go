package httpapi

import (
	"net/http"

	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/users"
)

// UserHandler serves registration, login and profile endpoints.
type UserHandler struct {
	users  UserAPI
	logger logging.Logger
}

func NewUserHandler(usersAPI UserAPI, logger logging.Logger) *UserHandler {
	return &UserHandler{
		users:  usersAPI,
		logger: logger.With("module", "http_users"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "email": user.Email})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

type profileResponse struct {
	ID                string                   `json:"id"`
	Email             string                   `json:"email"`
	NotificationLevel models.NotificationLevel `json:"notification_level"`
	PublicByDefault   bool                     `json:"public_by_default"`
	ShowExtension     bool                     `json:"show_extension"`
	RetainVersions    bool                     `json:"retain_versions"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetProfile(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		ID:                user.ID,
		Email:             user.Email,
		NotificationLevel: user.NotificationLevel,
		PublicByDefault:   user.PublicByDefault,
		ShowExtension:     user.ShowExtension,
		RetainVersions:    user.RetainVersions,
	})
}

type preferencesRequest struct {
	NotificationLevel string `json:"notification_level"`
	PublicByDefault   bool   `json:"public_by_default"`
	ShowExtension     bool   `json:"show_extension"`
	RetainVersions    bool   `json:"retain_versions"`
}

func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	prefs := users.Preferences{
		NotificationLevel: models.NotificationLevel(req.NotificationLevel),
		PublicByDefault:   req.PublicByDefault,
		ShowExtension:     req.ShowExtension,
		RetainVersions:    req.RetainVersions,
	}
	if err := h.users.UpdatePreferences(r.Context(), userID(r.Context()), prefs); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
