package services

import (
	"context"
	"database/sql"

	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
	"github.com/filevault/filevault/internal/server/repositories/shares"
	"github.com/google/uuid"
)

// fanout creates notification records for the grantees affected by share
// removal or file deletion. It runs strictly after the mutating transaction
// has committed and is fire-and-forget: failures are logged, never
// propagated, so a notification error can never undo a share removal.
type fanout struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func newFanout(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *fanout {
	return &fanout{db: db, repos: repos, logger: logger}
}

func (f *fanout) sharesRemoved(ctx context.Context, removed []shares.Removed) {
	f.notify(ctx, removed, models.NoticeTitleShareRevoked, models.NoticeMsgShareRevoked)
}

func (f *fanout) filesDeleted(ctx context.Context, removed []shares.Removed) {
	f.notify(ctx, removed, models.NoticeTitleFileDeleted, models.NoticeMsgFileDeleted)
}

func (f *fanout) notify(ctx context.Context, removed []shares.Removed, titleCode, messageCode int) {
	if len(removed) == 0 {
		return
	}

	granteeIDs := make([]string, 0, len(removed))
	seen := make(map[string]struct{}, len(removed))
	for _, sh := range removed {
		if _, ok := seen[sh.UserID]; ok {
			continue
		}
		seen[sh.UserID] = struct{}{}
		granteeIDs = append(granteeIDs, sh.UserID)
	}

	levels, err := f.repos.Users(f.db).NotificationLevels(ctx, granteeIDs)
	if err != nil {
		f.logger.Error(ctx, "notification fan-out: loading preference levels failed", "error", err)
		return
	}

	repo := f.repos.Notifications(f.db)
	for _, sh := range removed {
		if !levels[sh.UserID].IncludesNecessary() {
			continue
		}

		n := &models.Notification{
			ID:          uuid.New().String(),
			UserID:      sh.UserID,
			TitleCode:   titleCode,
			MessageCode: messageCode,
		}
		if err := repo.Create(ctx, n); err != nil {
			f.logger.Error(ctx, "notification fan-out: create failed",
				"user_id", sh.UserID, "file_id", sh.FileID, "error", err)
		}
	}
}
