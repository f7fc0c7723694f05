package versions

import (
	"context"

	"github.com/filevault/filevault/internal/server/models"
)

// Repository persists version records. Versions are append-only and only
// ever deleted by retention pruning or as part of a file deletion cascade.
type Repository interface {
	Create(ctx context.Context, version *models.Version) error

	// ListByFile returns the file's versions ordered oldest first; the
	// last element is the current version.
	ListByFile(ctx context.Context, fileID string) ([]*models.Version, error)

	// LatestByFile returns the most recently created version.
	LatestByFile(ctx context.Context, fileID string) (*models.Version, error)

	GetByID(ctx context.Context, id string) (*models.Version, error)

	// DeleteByIDs removes the given versions and returns the ids removed.
	DeleteByIDs(ctx context.Context, ids []string) ([]string, error)
}
