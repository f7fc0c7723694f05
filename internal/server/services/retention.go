package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/blobstore"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
)

// RetentionService prunes version history down to the current version when
// a user disables history retention.
type RetentionService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blobstore.BlobStore
	logger logging.Logger
}

func NewRetentionService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.BlobStore, logger logging.Logger) *RetentionService {
	return &RetentionService{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		logger: logger.With("module", "retention_service"),
	}
}

// PruneVersions deletes every non-current version of every file the user
// owns and returns the number of versions removed. Each file is pruned in
// its own transaction so a failure on one file never blocks the rest; the
// operation is resumable by simply running it again. Blob removal happens
// after each commit and is best-effort.
func (s *RetentionService) PruneVersions(ctx context.Context, ownerID string) (int, error) {
	if err := validateID(ownerID); err != nil {
		return 0, err
	}

	files, err := s.repos.Files(s.db).ByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("owner file listing failed: %w", err)
	}

	pruned := 0
	for _, f := range files {
		n, err := s.pruneFile(ctx, f)
		if err != nil {
			s.logger.Error(ctx, "version pruning failed",
				"file_id", f.ID, "owner_id", ownerID, "error", err)
			continue
		}
		pruned += n
	}
	return pruned, nil
}

// pruneFile keeps the newest version of one file and deletes the rest.
func (s *RetentionService) pruneFile(ctx context.Context, f *models.File) (int, error) {
	var stale []*models.Version

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Versions(tx)

		versions, err := repo.ListByFile(ctx, f.ID)
		if err != nil {
			return err
		}
		if len(versions) <= 1 {
			return nil
		}

		// versions are ordered oldest first, the last one is current
		stale = versions[:len(versions)-1]
		staleIDs := make([]string, len(stale))
		for i, v := range stale {
			staleIDs[i] = v.ID
		}

		_, err = repo.DeleteByIDs(ctx, staleIDs)
		return err
	})
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, v := range stale {
		wg.Add(1)
		go func(v *models.Version) {
			defer wg.Done()
			path := blobstore.VersionPath(f.OwnerID, f.ID, v.ID, f.Ext())
			if err := s.blobs.Remove(ctx, path); err != nil {
				s.logger.Error(ctx, "stale version blob removal failed",
					"file_id", f.ID, "version_id", v.ID, "error", err)
			}
		}(v)
	}
	wg.Wait()

	return len(stale), nil
}
