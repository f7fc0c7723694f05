package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/models"
	filesrepo "github.com/filevault/filevault/internal/server/repositories/files"
	notificationsrepo "github.com/filevault/filevault/internal/server/repositories/notifications"
	sharesrepo "github.com/filevault/filevault/internal/server/repositories/shares"
	usersrepo "github.com/filevault/filevault/internal/server/repositories/users"
	versionsrepo "github.com/filevault/filevault/internal/server/repositories/versions"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// --- repository fakes ---

type fakeFilesRepo struct {
	selectOut []*models.File
	selectErr error

	renameOut  []string
	renameErr  error
	renameName string

	deleteOut []string
	deleteErr error

	statusOut           []string
	statusErr           error
	statusRequirePublic bool

	getOut *models.File
	getErr error

	accessibleOut *models.File
	accessibleErr error

	canAdminister bool
	canErr        error

	listOut []models.FileListItem
	listErr error

	byOwnerOut []*models.File
	byOwnerErr error

	created *models.File
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) error {
	f.created = file
	return nil
}

func (f *fakeFilesRepo) GetByID(context.Context, string) (*models.File, error) {
	return f.getOut, f.getErr
}

func (f *fakeFilesRepo) GetAccessible(context.Context, string, string) (*models.File, error) {
	return f.accessibleOut, f.accessibleErr
}

func (f *fakeFilesRepo) SelectAuthorized(context.Context, string, []string) ([]*models.File, error) {
	return f.selectOut, f.selectErr
}

func (f *fakeFilesRepo) RenameAuthorized(ctx context.Context, actorID string, ids []string, name string) ([]string, error) {
	f.renameName = name
	return f.renameOut, f.renameErr
}

func (f *fakeFilesRepo) DeleteAuthorized(context.Context, string, []string) ([]string, error) {
	return f.deleteOut, f.deleteErr
}

func (f *fakeFilesRepo) UpdateStatusAuthorized(ctx context.Context, actorID string, ids []string, status models.FileStatus, requirePublic bool) ([]string, error) {
	f.statusRequirePublic = requirePublic
	return f.statusOut, f.statusErr
}

func (f *fakeFilesRepo) CanAdminister(context.Context, string, string) (bool, error) {
	return f.canAdminister, f.canErr
}

func (f *fakeFilesRepo) ListByOwner(context.Context, string) ([]models.FileListItem, error) {
	return f.listOut, f.listErr
}

func (f *fakeFilesRepo) ByOwner(context.Context, string) ([]*models.File, error) {
	return f.byOwnerOut, f.byOwnerErr
}

type fakeSharesRepo struct {
	upserted  *models.Share
	upsertErr error

	removableOut []sharesrepo.Removed
	removableErr error

	deletedN  int64
	deleteErr error

	byFileOut []models.Share
	byFileErr error

	deletedByFile []string
	byFileDelErr  error
}

func (f *fakeSharesRepo) Upsert(ctx context.Context, share *models.Share) error {
	f.upserted = share
	return f.upsertErr
}

func (f *fakeSharesRepo) SelectRemovable(context.Context, string, []string, string) ([]sharesrepo.Removed, error) {
	return f.removableOut, f.removableErr
}

func (f *fakeSharesRepo) DeleteAuthorized(context.Context, string, []string, string) (int64, error) {
	return f.deletedN, f.deleteErr
}

func (f *fakeSharesRepo) SelectByFileIDs(context.Context, []string) ([]models.Share, error) {
	return f.byFileOut, f.byFileErr
}

func (f *fakeSharesRepo) DeleteByFileIDs(ctx context.Context, fileIDs []string) (int64, error) {
	f.deletedByFile = fileIDs
	return int64(len(fileIDs)), f.byFileDelErr
}

type fakeVersionsRepo struct {
	created *models.Version

	listOut []*models.Version
	listErr error

	latestOut *models.Version
	latestErr error

	deletedIDs []string
	deleteErr  error
}

func (f *fakeVersionsRepo) Create(ctx context.Context, v *models.Version) error {
	f.created = v
	return nil
}

func (f *fakeVersionsRepo) ListByFile(context.Context, string) ([]*models.Version, error) {
	return f.listOut, f.listErr
}

func (f *fakeVersionsRepo) LatestByFile(context.Context, string) (*models.Version, error) {
	return f.latestOut, f.latestErr
}

func (f *fakeVersionsRepo) GetByID(context.Context, string) (*models.Version, error) {
	return nil, nil
}

func (f *fakeVersionsRepo) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, ids...)
	return ids, nil
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error

	byEmailOut *models.User
	byEmailErr error

	updatedPrefs *usersrepo.Preferences
	updateErr    error

	levelsOut map[string]models.NotificationLevel
	levelsErr error
}

func (f *fakeUsersRepo) Create(context.Context, *models.User) (*models.User, error) {
	return f.createOut, f.createErr
}

func (f *fakeUsersRepo) GetByID(context.Context, string) (*models.User, error) {
	return f.getOut, f.getErr
}

func (f *fakeUsersRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return f.byEmailOut, f.byEmailErr
}

func (f *fakeUsersRepo) UpdatePreferences(ctx context.Context, userID string, prefs usersrepo.Preferences) error {
	f.updatedPrefs = &prefs
	return f.updateErr
}

func (f *fakeUsersRepo) NotificationLevels(context.Context, []string) (map[string]models.NotificationLevel, error) {
	return f.levelsOut, f.levelsErr
}

type fakeNotificationsRepo struct {
	created []*models.Notification

	listOut []*models.Notification
	listErr error

	clearedN int64
	clearErr error
}

func (f *fakeNotificationsRepo) Create(ctx context.Context, n *models.Notification) error {
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationsRepo) ListByUser(context.Context, string) ([]*models.Notification, error) {
	return f.listOut, f.listErr
}

func (f *fakeNotificationsRepo) DeleteAllByUser(context.Context, string) (int64, error) {
	return f.clearedN, f.clearErr
}

type fakeRepoManager struct {
	files         *fakeFilesRepo
	shares        *fakeSharesRepo
	versions      versionsrepo.Repository
	users         *fakeUsersRepo
	notifications *fakeNotificationsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository      { return m.files }
func (m *fakeRepoManager) Shares(db dbx.DBTX) sharesrepo.Repository    { return m.shares }
func (m *fakeRepoManager) Versions(db dbx.DBTX) versionsrepo.Repository {
	return m.versions
}
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.users }
func (m *fakeRepoManager) Notifications(db dbx.DBTX) notificationsrepo.Repository {
	return m.notifications
}

// --- blob store fake ---

type fakeBlobStore struct {
	putPath string
	putErr  error

	openOut io.ReadCloser
	openErr error

	removed    []string
	removeErr  error
	treesGone  []string
	treeRemErr error
}

func (f *fakeBlobStore) Put(ctx context.Context, path string, r io.Reader) (int64, string, error) {
	if f.putErr != nil {
		return 0, "", f.putErr
	}
	f.putPath = path
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	return n, "deadbeef", err
}

func (f *fakeBlobStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return f.openOut, f.openErr
}

func (f *fakeBlobStore) Remove(ctx context.Context, path string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeBlobStore) RemoveFileTree(ctx context.Context, ownerID, fileID string) error {
	if f.treeRemErr != nil {
		return f.treeRemErr
	}
	f.treesGone = append(f.treesGone, ownerID+"/"+fileID)
	return nil
}

// --- listing cache fake ---

type fakeListingCache struct {
	getOut      []models.FileListItem
	getErr      error
	setByUser   map[string][]models.FileListItem
	invalidated []string
}

func (f *fakeListingCache) Get(ctx context.Context, userID string) ([]models.FileListItem, error) {
	return f.getOut, f.getErr
}

func (f *fakeListingCache) Set(ctx context.Context, userID string, items []models.FileListItem) error {
	if f.setByUser == nil {
		f.setByUser = map[string][]models.FileListItem{}
	}
	f.setByUser[userID] = items
	return nil
}

func (f *fakeListingCache) Invalidate(ctx context.Context, userIDs ...string) error {
	f.invalidated = append(f.invalidated, userIDs...)
	return nil
}
