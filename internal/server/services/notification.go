package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
)

// NotificationService reads and clears a user's notification inbox.
type NotificationService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewNotificationService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *NotificationService {
	return &NotificationService{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "notification_service"),
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]*models.Notification, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	return s.repos.Notifications(s.db).ListByUser(ctx, userID)
}

// Clear removes every notification of the user and returns how many were
// deleted.
func (s *NotificationService) Clear(ctx context.Context, userID string) (int64, error) {
	if err := validateID(userID); err != nil {
		return 0, err
	}
	n, err := s.repos.Notifications(s.db).DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("notification clearing failed: %w", err)
	}
	return n, nil
}
