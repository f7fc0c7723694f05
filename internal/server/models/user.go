// Package models defines the server-side data models persisted in the database.
package models

import "time"

// NotificationLevel is a user's notification preference. Levels with the
// "_mail" suffix additionally request e-mail delivery; the engine only
// decides whether a notification row is created at all.
type NotificationLevel string

const (
	NotificationOff           NotificationLevel = "off"
	NotificationNecessary     NotificationLevel = "necessary"
	NotificationNecessaryMail NotificationLevel = "necessary_mail"
	NotificationAll           NotificationLevel = "all"
	NotificationAllMail       NotificationLevel = "all_mail"
)

// IncludesNecessary reports whether the level covers "necessary" class
// events (share revoked, file deleted). Every level except off does.
func (l NotificationLevel) IncludesNecessary() bool {
	return l != NotificationOff && l != ""
}

// Valid reports whether l is one of the known levels.
func (l NotificationLevel) Valid() bool {
	switch l {
	case NotificationOff, NotificationNecessary, NotificationNecessaryMail,
		NotificationAll, NotificationAllMail:
		return true
	}
	return false
}

// User is an account that owns files and receives notifications.
type User struct {
	// ID is the stable user identifier (UUID).
	ID string
	// Email doubles as the login name.
	Email string
	// PasswordHash is a bcrypt hash; never the plain password.
	PasswordHash string

	// NotificationLevel filters the notification fan-out.
	NotificationLevel NotificationLevel

	// Storage preferences.
	PublicByDefault bool
	ShowExtension   bool
	RetainVersions  bool

	CreatedAt time.Time
}
