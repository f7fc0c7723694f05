package notifications

import (
	"context"

	"github.com/filevault/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string) ([]*models.Notification, error)

	// DeleteAllByUser implements "mark all read": acknowledged
	// notifications are removed in bulk.
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}
