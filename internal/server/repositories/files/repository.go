package files

import (
	"context"

	"github.com/filevault/filevault/internal/server/models"
)

// Repository persists file records. Batch mutations follow the
// select-then-mutate pattern: the selection and the mutation share one
// authorization predicate, so the returned ids are exactly the rows changed.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)

	// GetAccessible returns the file if the user is its owner, holds any
	// share on it, or the file is public.
	GetAccessible(ctx context.Context, id, userID string) (*models.File, error)

	// SelectAuthorized returns the subset of ids the actor may mutate
	// (ownership or a write share), preserving the requested order.
	SelectAuthorized(ctx context.Context, actorID string, ids []string) ([]*models.File, error)

	// RenameAuthorized applies one literal name across the batch and
	// returns the ids actually updated.
	RenameAuthorized(ctx context.Context, actorID string, ids []string, name string) ([]string, error)

	// DeleteAuthorized removes the authorized subset and returns its ids.
	DeleteAuthorized(ctx context.Context, actorID string, ids []string) ([]string, error)

	// UpdateStatusAuthorized sets the stored status on the authorized
	// subset. With requirePublic the predicate additionally demands the
	// current stored status to be public, which is what forbids
	// privatizing a file that still has shares.
	UpdateStatusAuthorized(ctx context.Context, actorID string, ids []string, status models.FileStatus, requirePublic bool) ([]string, error)

	// CanAdminister reports whether the actor owns the file or holds an
	// admin share on it.
	CanAdminister(ctx context.Context, fileID, actorID string) (bool, error)

	// ListByOwner returns the owner's files enriched with the derived
	// effective status and version/share counts.
	ListByOwner(ctx context.Context, ownerID string) ([]models.FileListItem, error)

	// ByOwner returns the owner's bare file records (id, name, status).
	ByOwner(ctx context.Context, ownerID string) ([]*models.File, error)
}
