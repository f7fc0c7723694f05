package httpapi

import (
	"context"
	"io"

	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/users"
)

// The handler-facing service interfaces. The services package satisfies
// them; tests substitute fakes.

type FileAPI interface {
	RenameFiles(ctx context.Context, actorID string, fileIDs []string, newName string) ([]string, error)
	DeleteFiles(ctx context.Context, actorID string, fileIDs []string) ([]string, error)
	ChangeStatus(ctx context.Context, actorID string, fileIDs []string, status models.FileStatus) ([]string, error)
	ListFiles(ctx context.Context, userID string) ([]models.FileListItem, error)
	Upload(ctx context.Context, ownerID, fileID, name string, r io.Reader, encrypted bool) (*models.File, *models.Version, error)
	Download(ctx context.Context, actorID, fileID, key string) (*models.File, *models.Version, io.ReadCloser, error)
}

type ShareAPI interface {
	AddShare(ctx context.Context, actorID, fileID, granteeID string, perm models.SharePermission) error
	RemoveShares(ctx context.Context, actorID string, fileIDs []string, granteeID string) ([]string, error)
	ListShares(ctx context.Context, actorID string, fileIDs []string) ([]models.Share, error)
}

type UserAPI interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs users.Preferences) error
}

type NotificationAPI interface {
	List(ctx context.Context, userID string) ([]*models.Notification, error)
	Clear(ctx context.Context, userID string) (int64, error)
}
