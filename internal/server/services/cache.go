package services

import (
	"context"

	"github.com/filevault/filevault/internal/server/models"
)

// ListingCache is the optional cache of per-user file listings. A nil cache
// disables caching; errors from the cache are logged and never fail the
// request.
type ListingCache interface {
	Get(ctx context.Context, userID string) ([]models.FileListItem, error)
	Set(ctx context.Context, userID string, items []models.FileListItem) error
	Invalidate(ctx context.Context, userIDs ...string) error
}
