// Package services contains the server-side business logic: the file
// lifecycle engine, share management, retention pruning, user accounts and
// the notification fan-out.
//
// Every batch mutation follows the same contract: the result is the subset
// of requested ids that were actually authorized and mutated. Callers
// distinguish total failure, partial success and full success by comparing
// the input and output cardinalities; per-id errors are never reported.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/blobstore"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
	"github.com/filevault/filevault/internal/server/repositories/shares"
	"github.com/google/uuid"
)

// FileService implements the file lifecycle operations. All database work of
// one batch happens inside a single transaction; filesystem cleanup and
// notification fan-out run strictly after commit and are best-effort.
type FileService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blobstore.BlobStore
	cache  ListingCache
	logger logging.Logger
	fanout *fanout
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.BlobStore,
	cache ListingCache, logger logging.Logger) *FileService {
	return &FileService{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		cache:  cache,
		logger: logger.With("module", "file_service"),
		fanout: newFanout(db, repos, logger),
	}
}

// RenameFiles renames the authorized subset of the batch to one literal
// base name plus the extension of the first authorized match, and returns
// the ids actually renamed. Applying a single extension across a mixed
// batch can collide names for files of differing extensions; the behavior
// is kept because the bulk-rename callers only ever select files of one
// extension, and the schema never validated name uniqueness.
func (s *FileService) RenameFiles(ctx context.Context, actorID string, fileIDs []string, newName string) ([]string, error) {
	if err := validateBatchIDs(fileIDs); err != nil {
		return nil, err
	}
	if err := validateBaseName(newName); err != nil {
		return nil, err
	}

	var renamed []string
	owners := map[string]struct{}{actorID: {}}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Files(tx)

		selected, err := repo.SelectAuthorized(ctx, actorID, fileIDs)
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return nil
		}
		for _, f := range selected {
			owners[f.OwnerID] = struct{}{}
		}

		target := newName + selected[0].Ext()
		renamed, err = repo.RenameAuthorized(ctx, actorID, fileIDs, target)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rename failed: %w", err)
	}

	s.invalidate(ctx, owners)
	return renamed, nil
}

// DeleteFiles deletes the authorized subset of the batch together with its
// versions and shares, then removes the blob directories concurrently and
// notifies former grantees. The database is the authoritative record:
// filesystem failures are reported to the log and never undo the committed
// deletion.
func (s *FileService) DeleteFiles(ctx context.Context, actorID string, fileIDs []string) ([]string, error) {
	if err := validateBatchIDs(fileIDs); err != nil {
		return nil, err
	}

	var (
		deleted       []string
		doomed        []*models.File
		removedShares []shares.Removed
	)
	owners := map[string]struct{}{actorID: {}}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		filesRepo := s.repos.Files(tx)

		var err error
		doomed, err = filesRepo.SelectAuthorized(ctx, actorID, fileIDs)
		if err != nil {
			return err
		}
		if len(doomed) == 0 {
			return nil
		}

		doomedIDs := make([]string, len(doomed))
		for i, f := range doomed {
			doomedIDs[i] = f.ID
			owners[f.OwnerID] = struct{}{}
		}

		// grantees must be captured before the cascade removes their rows
		sharesOfDoomed, err := s.repos.Shares(tx).SelectByFileIDs(ctx, doomedIDs)
		if err != nil {
			return err
		}
		for i, sh := range sharesOfDoomed {
			removedShares = append(removedShares, shares.Removed{Share: sharesOfDoomed[i], OwnerID: ownerOf(doomed, sh.FileID)})
		}

		deleted, err = filesRepo.DeleteAuthorized(ctx, actorID, fileIDs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}

	s.cleanupBlobs(ctx, doomed)
	s.fanout.filesDeleted(ctx, removedShares)
	s.invalidate(ctx, owners)

	return deleted, nil
}

// ChangeStatus sets the stored status on the authorized subset and returns
// the ids actually changed. Going public deletes every share of the
// affected set in the same transaction; going private only matches files
// whose stored status is public, which keeps files in effective "shared"
// state untouched until their shares are cleared.
func (s *FileService) ChangeStatus(ctx context.Context, actorID string, fileIDs []string, status models.FileStatus) ([]string, error) {
	if err := validateBatchIDs(fileIDs); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, status)
	}

	var changed []string
	owners := map[string]struct{}{actorID: {}}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		filesRepo := s.repos.Files(tx)

		selected, err := filesRepo.SelectAuthorized(ctx, actorID, fileIDs)
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return nil
		}
		for _, f := range selected {
			owners[f.OwnerID] = struct{}{}
		}

		changed, err = filesRepo.UpdateStatusAuthorized(ctx, actorID, fileIDs, status, status == models.StatusPrivate)
		if err != nil {
			return err
		}

		if status == models.StatusPublic && len(changed) > 0 {
			// public files need no per-user grants
			if _, err := s.repos.Shares(tx).DeleteByFileIDs(ctx, changed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("status change failed: %w", err)
	}

	s.invalidate(ctx, owners)
	return changed, nil
}

// ListFiles returns the user's files with derived effective status, served
// from the listing cache when possible.
func (s *FileService) ListFiles(ctx context.Context, userID string) ([]models.FileListItem, error) {
	if s.cache != nil {
		items, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn(ctx, "listing cache read failed", "user_id", userID, "error", err)
		} else if items != nil {
			return items, nil
		}
	}

	items, err := s.repos.Files(s.db).ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing failed: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, items); err != nil {
			s.logger.Warn(ctx, "listing cache write failed", "user_id", userID, "error", err)
		}
	}
	return items, nil
}

// Upload stores a new blob and records it as a version. With an empty
// fileID a new file is created, its status taken from the owner's
// publicByDefault preference; otherwise the version is appended to the
// existing file, subject to the usual write authorization. The blob is
// written before the database rows become visible, so a transaction
// failure leaves at worst an orphaned blob, which is removed best-effort.
func (s *FileService) Upload(ctx context.Context, ownerID, fileID, name string, r io.Reader, encrypted bool) (*models.File, *models.Version, error) {
	var file *models.File

	if fileID == "" {
		if err := validateBaseName(name); err != nil {
			return nil, nil, err
		}

		owner, err := s.repos.Users(s.db).GetByID(ctx, ownerID)
		if err != nil {
			return nil, nil, fmt.Errorf("owner lookup failed: %w", err)
		}

		status := models.StatusPrivate
		if owner.PublicByDefault {
			status = models.StatusPublic
		}
		file = &models.File{
			ID:      uuid.New().String(),
			OwnerID: ownerID,
			Name:    name,
			Status:  status,
		}
	} else {
		if err := validateID(fileID); err != nil {
			return nil, nil, err
		}

		selected, err := s.repos.Files(s.db).SelectAuthorized(ctx, ownerID, []string{fileID})
		if err != nil {
			return nil, nil, fmt.Errorf("file lookup failed: %w", err)
		}
		if len(selected) == 0 {
			return nil, nil, common.ErrorUnauthorized
		}
		file = selected[0]
	}

	version := &models.Version{
		ID:        uuid.New().String(),
		FileID:    file.ID,
		Encrypted: encrypted,
	}

	blobPath := blobstore.VersionPath(file.OwnerID, file.ID, version.ID, file.Ext())
	size, sum, err := s.blobs.Put(ctx, blobPath, r)
	if err != nil {
		return nil, nil, fmt.Errorf("blob write failed: %w", err)
	}
	version.SizeBytes = size
	version.Sha256 = sum

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if fileID == "" {
			if err := s.repos.Files(tx).Create(ctx, file); err != nil {
				return err
			}
		}
		return s.repos.Versions(tx).Create(ctx, version)
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, blobPath); rmErr != nil {
			s.logger.Error(ctx, "orphaned blob cleanup failed", "path", blobPath, "error", rmErr)
		}
		return nil, nil, fmt.Errorf("upload failed: %w", err)
	}

	s.invalidate(ctx, map[string]struct{}{file.OwnerID: {}})
	return file, version, nil
}

// Download resolves the file's current version and opens its blob. The
// caller may be anonymous (empty actorID) for public files. Encrypted
// versions require the caller-supplied decryption key, which is only ever
// relayed, never stored.
func (s *FileService) Download(ctx context.Context, actorID, fileID, key string) (*models.File, *models.Version, io.ReadCloser, error) {
	if err := validateID(fileID); err != nil {
		return nil, nil, nil, err
	}

	file, err := s.repos.Files(s.db).GetAccessible(ctx, fileID, actorID)
	if err != nil {
		return nil, nil, nil, err
	}

	version, err := s.repos.Versions(s.db).LatestByFile(ctx, file.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	if version.Encrypted && key == "" {
		return nil, nil, nil, common.ErrKeyRequired
	}

	rc, err := s.blobs.Open(ctx, blobstore.VersionPath(file.OwnerID, file.ID, version.ID, file.Ext()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("blob open failed: %w", err)
	}
	return file, version, rc, nil
}

// cleanupBlobs removes the deleted files' blob directories concurrently.
// Each removal fails independently; errors go to the fault log only.
func (s *FileService) cleanupBlobs(ctx context.Context, deleted []*models.File) {
	var wg sync.WaitGroup
	for _, f := range deleted {
		wg.Add(1)
		go func(f *models.File) {
			defer wg.Done()
			if err := s.blobs.RemoveFileTree(ctx, f.OwnerID, f.ID); err != nil {
				s.logger.Error(ctx, "blob cleanup failed",
					"file_id", f.ID, "owner_id", f.OwnerID, "error", err)
			}
		}(f)
	}
	wg.Wait()
}

func (s *FileService) invalidate(ctx context.Context, owners map[string]struct{}) {
	if s.cache == nil {
		return
	}
	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn(ctx, "listing cache invalidation failed", "error", err)
	}
}

func ownerOf(files []*models.File, fileID string) string {
	for _, f := range files {
		if f.ID == fileID {
			return f.OwnerID
		}
	}
	return ""
}
