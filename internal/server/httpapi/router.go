package httpapi

import (
	"net/http"

	"github.com/filevault/filevault/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers bundles the endpoint handlers the router mounts.
type Handlers struct {
	Files         *FileHandler
	Shares        *ShareHandler
	Users         *UserHandler
	Notifications *NotificationHandler
}

// NewRouter wires all routes. Everything under /api except registration and
// login requires a bearer token; download accepts anonymous requests so
// public files stay publicly reachable.
func NewRouter(h Handlers, secretKey []byte, logger logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Users.Register)
		r.Post("/login", h.Users.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(secretKey))

			r.Get("/files", h.Files.List)
			r.Post("/files", h.Files.Upload)
			r.Post("/files/rename", h.Files.Rename)
			r.Post("/files/delete", h.Files.Delete)
			r.Post("/files/status", h.Files.ChangeStatus)

			r.Get("/shares", h.Shares.List)
			r.Post("/shares", h.Shares.Add)
			r.Post("/shares/remove", h.Shares.Remove)

			r.Get("/notifications", h.Notifications.List)
			r.Post("/notifications/read", h.Notifications.MarkAllRead)

			r.Get("/profile", h.Users.Profile)
			r.Put("/profile/preferences", h.Users.UpdatePreferences)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(optionalAuth(secretKey))
		r.Get("/files/{fileID}/download", h.Files.Download)
	})

	return r
}
