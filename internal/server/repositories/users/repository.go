package users

import (
	"context"

	"github.com/filevault/filevault/internal/server/models"
)

// Preferences is the mutable settings slice of a user record.
type Preferences struct {
	NotificationLevel models.NotificationLevel
	PublicByDefault   bool
	ShowExtension     bool
	RetainVersions    bool
}

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs Preferences) error

	// NotificationLevels returns the preference level per user id; the
	// fan-out uses it to filter recipients.
	NotificationLevels(ctx context.Context, userIDs []string) (map[string]models.NotificationLevel, error)
}
