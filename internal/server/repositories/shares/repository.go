package shares

import (
	"context"

	"github.com/filevault/filevault/internal/server/models"
)

// Removed is a share row selected for removal, carrying the owning file's
// owner id for the post-commit fan-out and cache invalidation.
type Removed struct {
	models.Share
	OwnerID string
}

// Repository persists share grants. Removal follows the same
// select-then-delete shape as file mutations: SelectRemovable and
// DeleteAuthorized embed an identical predicate so the selected rows are
// exactly the ones deleted within one transaction.
type Repository interface {
	// Upsert creates or updates the share for (FileID, UserID).
	Upsert(ctx context.Context, share *models.Share) error

	// SelectRemovable returns the share rows the actor may remove:
	// shares of files the actor owns or holds a write share on,
	// optionally narrowed to a single grantee. granteeID == "" matches
	// all grantees.
	SelectRemovable(ctx context.Context, actorID string, fileIDs []string, granteeID string) ([]Removed, error)

	// DeleteAuthorized removes those same rows and reports the count.
	DeleteAuthorized(ctx context.Context, actorID string, fileIDs []string, granteeID string) (int64, error)

	// SelectByFileIDs returns all shares of the given files regardless of
	// actor; callers use it inside a transaction that already resolved
	// authorization.
	SelectByFileIDs(ctx context.Context, fileIDs []string) ([]models.Share, error)

	// DeleteByFileIDs removes every share of the given files. Used when a
	// file goes public: public files need no per-user grants.
	DeleteByFileIDs(ctx context.Context, fileIDs []string) (int64, error)
}
