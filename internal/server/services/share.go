package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
	"github.com/filevault/filevault/internal/server/repositories/shares"
)

// ShareService manages per-user grants on files.
type ShareService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	cache  ListingCache
	logger logging.Logger
	fanout *fanout
}

func NewShareService(db *sql.DB, repos repomanager.RepositoryManager, cache ListingCache, logger logging.Logger) *ShareService {
	return &ShareService{
		db:     db,
		repos:  repos,
		cache:  cache,
		logger: logger.With("module", "share_service"),
		fanout: newFanout(db, repos, logger),
	}
}

// AddShare grants a user access to a file, upserting the permission when a
// grant already exists. Only the owner or an admin-level grantee may share,
// and the owner can never be a grantee of their own file.
func (s *ShareService) AddShare(ctx context.Context, actorID, fileID, granteeID string, perm models.SharePermission) error {
	if err := validateID(fileID); err != nil {
		return err
	}
	if err := validateID(granteeID); err != nil {
		return err
	}
	if !perm.Valid() {
		return fmt.Errorf("%w: unknown permission %q", common.ErrorValidation, perm)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		filesRepo := s.repos.Files(tx)

		file, err := filesRepo.GetByID(ctx, fileID)
		if err != nil {
			return err
		}
		if file.OwnerID == granteeID {
			return fmt.Errorf("%w: owner cannot be a grantee", common.ErrorValidation)
		}

		ok, err := filesRepo.CanAdminister(ctx, fileID, actorID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorUnauthorized
		}

		if _, err := s.repos.Users(tx).GetByID(ctx, granteeID); err != nil {
			return err
		}

		return s.repos.Shares(tx).Upsert(ctx, &models.Share{
			FileID:     fileID,
			UserID:     granteeID,
			Permission: perm,
		})
	})
	if err != nil {
		return fmt.Errorf("share grant failed: %w", err)
	}

	s.invalidateUsers(ctx, actorID, granteeID)
	return nil
}

// RemoveShares removes grants on a batch of files, at the actor's authority,
// and returns the file ids from which at least one share was removed. With
// an empty granteeID every share of each authorized file is cleared;
// otherwise only the named grantee's share goes. The affected grantees are
// notified after commit.
func (s *ShareService) RemoveShares(ctx context.Context, actorID string, fileIDs []string, granteeID string) ([]string, error) {
	if err := validateBatchIDs(fileIDs); err != nil {
		return nil, err
	}
	if granteeID != "" {
		if err := validateID(granteeID); err != nil {
			return nil, err
		}
	}

	var removed []shares.Removed

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Shares(tx)

		var err error
		removed, err = repo.SelectRemovable(ctx, actorID, fileIDs, granteeID)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}

		n, err := repo.DeleteAuthorized(ctx, actorID, fileIDs, granteeID)
		if err != nil {
			return err
		}
		if n != int64(len(removed)) {
			s.logger.Warn(ctx, "share removal count mismatch",
				"selected", len(removed), "deleted", n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("share removal failed: %w", err)
	}

	s.fanout.sharesRemoved(ctx, removed)

	affected := make([]string, 0, len(removed))
	seen := make(map[string]struct{}, len(removed))
	users := []string{actorID}
	for _, r := range removed {
		users = append(users, r.UserID, r.OwnerID)
		if _, ok := seen[r.FileID]; ok {
			continue
		}
		seen[r.FileID] = struct{}{}
		affected = append(affected, r.FileID)
	}
	s.invalidateUsers(ctx, users...)

	return affected, nil
}

// ListShares returns the shares on the given files visible to the actor.
func (s *ShareService) ListShares(ctx context.Context, actorID string, fileIDs []string) ([]models.Share, error) {
	if err := validateBatchIDs(fileIDs); err != nil {
		return nil, err
	}

	removable, err := s.repos.Shares(s.db).SelectRemovable(ctx, actorID, fileIDs, "")
	if err != nil {
		return nil, fmt.Errorf("share listing failed: %w", err)
	}

	out := make([]models.Share, len(removable))
	for i, r := range removable {
		out[i] = r.Share
	}
	return out, nil
}

func (s *ShareService) invalidateUsers(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]struct{}, len(userIDs))
	uniq := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if err := s.cache.Invalidate(ctx, uniq...); err != nil {
		s.logger.Warn(ctx, "listing cache invalidation failed", "error", err)
	}
}
