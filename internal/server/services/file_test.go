package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/google/uuid"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.New().String()
	}
	return out
}

func TestRenameFiles_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	batch := ids(3)
	fr := &fakeFilesRepo{
		selectOut: []*models.File{
			{ID: batch[0], OwnerID: "owner-1", Name: "report.pdf"},
			{ID: batch[1], OwnerID: "owner-1", Name: "notes.pdf"},
			{ID: batch[2], OwnerID: "owner-2", Name: "draft.pdf"},
		},
		renameOut: batch,
	}
	rm := &fakeRepoManager{files: fr}
	cache := &fakeListingCache{}
	svc := NewFileService(db, rm, &fakeBlobStore{}, cache, nopLogger{})

	renamed, err := svc.RenameFiles(context.Background(), "owner-1", batch, "archive")
	if err != nil {
		t.Fatalf("RenameFiles error: %v", err)
	}
	if len(renamed) != 3 {
		t.Fatalf("renamed = %d ids, want 3", len(renamed))
	}
	if fr.renameName != "archive.pdf" {
		t.Errorf("stored name = %q, want %q", fr.renameName, "archive.pdf")
	}
	if len(cache.invalidated) == 0 {
		t.Error("listing cache was not invalidated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestRenameFiles_PartialAuthorization(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	batch := ids(3)
	fr := &fakeFilesRepo{
		selectOut: []*models.File{{ID: batch[1], OwnerID: "owner-1", Name: "a.txt"}},
		renameOut: []string{batch[1]},
	}
	rm := &fakeRepoManager{files: fr}
	svc := NewFileService(db, rm, &fakeBlobStore{}, nil, nopLogger{})

	renamed, err := svc.RenameFiles(context.Background(), "owner-1", batch, "kept")
	if err != nil {
		t.Fatalf("RenameFiles error: %v", err)
	}
	if len(renamed) != 1 || renamed[0] != batch[1] {
		t.Fatalf("renamed = %v, want exactly the authorized id", renamed)
	}
}

func TestRenameFiles_NoneAuthorized(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{files: &fakeFilesRepo{}}
	svc := NewFileService(db, rm, &fakeBlobStore{}, nil, nopLogger{})

	renamed, err := svc.RenameFiles(context.Background(), "stranger", ids(2), "mine")
	if err != nil {
		t.Fatalf("RenameFiles error: %v", err)
	}
	if len(renamed) != 0 {
		t.Fatalf("renamed = %v, want empty", renamed)
	}
}

func TestRenameFiles_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	svc := NewFileService(db, &fakeRepoManager{}, &fakeBlobStore{}, nil, nopLogger{})

	cases := []struct {
		name    string
		ids     []string
		newName string
	}{
		{"empty batch", nil, "x"},
		{"malformed id", []string{"not-a-uuid"}, "x"},
		{"empty name", ids(1), ""},
		{"slash in name", ids(1), "a/b"},
		{"overlong name", ids(1), strings.Repeat("x", 101)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RenameFiles(context.Background(), "u1", tc.ids, tc.newName)
			if !errors.Is(err, common.ErrorValidation) {
				t.Fatalf("err = %v, want ErrorValidation", err)
			}
		})
	}
}

func TestRenameFiles_TxRollbackOnError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	fr := &fakeFilesRepo{
		selectOut: []*models.File{{ID: uuid.New().String(), OwnerID: "o", Name: "a.txt"}},
		renameErr: errors.New("db error"),
	}
	svc := NewFileService(db, &fakeRepoManager{files: fr}, &fakeBlobStore{}, nil, nopLogger{})

	_, err := svc.RenameFiles(context.Background(), "o", ids(1), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestDeleteFiles_RemovesBlobsAndNotifies(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	batch := ids(2)
	doomed := []*models.File{
		{ID: batch[0], OwnerID: "owner-1", Name: "a.txt"},
		{ID: batch[1], OwnerID: "owner-1", Name: "b.txt"},
	}
	fr := &fakeFilesRepo{selectOut: doomed, deleteOut: batch}
	sr := &fakeSharesRepo{
		byFileOut: []models.Share{
			{FileID: batch[0], UserID: "grantee-1", Permission: models.PermissionRead},
			{FileID: batch[0], UserID: "grantee-2", Permission: models.PermissionWrite},
		},
	}
	ur := &fakeUsersRepo{levelsOut: map[string]models.NotificationLevel{
		"grantee-1": models.NotificationNecessary,
		"grantee-2": models.NotificationOff,
	}}
	nr := &fakeNotificationsRepo{}
	blobs := &fakeBlobStore{}
	rm := &fakeRepoManager{files: fr, shares: sr, users: ur, notifications: nr}
	svc := NewFileService(db, rm, blobs, nil, nopLogger{})

	deleted, err := svc.DeleteFiles(context.Background(), "owner-1", batch)
	if err != nil {
		t.Fatalf("DeleteFiles error: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted = %v, want both ids", deleted)
	}
	if len(blobs.treesGone) != 2 {
		t.Errorf("blob trees removed = %v, want 2", blobs.treesGone)
	}

	// only the grantee whose level admits necessary notices is notified
	if len(nr.created) != 1 {
		t.Fatalf("notifications created = %d, want 1", len(nr.created))
	}
	n := nr.created[0]
	if n.UserID != "grantee-1" {
		t.Errorf("notified user = %q, want grantee-1", n.UserID)
	}
	if n.TitleCode != models.NoticeTitleFileDeleted || n.MessageCode != models.NoticeMsgFileDeleted {
		t.Errorf("notice codes = (%d, %d), want file-deleted codes", n.TitleCode, n.MessageCode)
	}
}

func TestDeleteFiles_BlobFailureDoesNotFail(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	batch := ids(1)
	fr := &fakeFilesRepo{
		selectOut: []*models.File{{ID: batch[0], OwnerID: "o", Name: "a.txt"}},
		deleteOut: batch,
	}
	blobs := &fakeBlobStore{treeRemErr: errors.New("disk gone")}
	rm := &fakeRepoManager{files: fr, shares: &fakeSharesRepo{}, users: &fakeUsersRepo{}, notifications: &fakeNotificationsRepo{}}
	svc := NewFileService(db, rm, blobs, nil, nopLogger{})

	deleted, err := svc.DeleteFiles(context.Background(), "o", batch)
	if err != nil {
		t.Fatalf("DeleteFiles error: %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("deleted = %v, want the id despite blob failure", deleted)
	}
}

func TestChangeStatus_PublicClearsShares(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	batch := ids(2)
	fr := &fakeFilesRepo{
		selectOut: []*models.File{
			{ID: batch[0], OwnerID: "o", Name: "a.txt", Status: models.StatusPrivate},
			{ID: batch[1], OwnerID: "o", Name: "b.txt", Status: models.StatusPrivate},
		},
		statusOut: batch,
	}
	sr := &fakeSharesRepo{}
	svc := NewFileService(db, &fakeRepoManager{files: fr, shares: sr}, &fakeBlobStore{}, nil, nopLogger{})

	changed, err := svc.ChangeStatus(context.Background(), "o", batch, models.StatusPublic)
	if err != nil {
		t.Fatalf("ChangeStatus error: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("changed = %v, want both", changed)
	}
	if len(sr.deletedByFile) != 2 {
		t.Errorf("shares cleared for %v, want both files", sr.deletedByFile)
	}
	if fr.statusRequirePublic {
		t.Error("requirePublic must be false when publishing")
	}
}

func TestChangeStatus_PrivateRequiresStoredPublic(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	batch := ids(2)
	fr := &fakeFilesRepo{
		selectOut: []*models.File{
			{ID: batch[0], OwnerID: "o", Name: "a.txt", Status: models.StatusPublic},
			{ID: batch[1], OwnerID: "o", Name: "b.txt", Status: models.StatusPrivate},
		},
		statusOut: []string{batch[0]},
	}
	sr := &fakeSharesRepo{}
	svc := NewFileService(db, &fakeRepoManager{files: fr, shares: sr}, &fakeBlobStore{}, nil, nopLogger{})

	changed, err := svc.ChangeStatus(context.Background(), "o", batch, models.StatusPrivate)
	if err != nil {
		t.Fatalf("ChangeStatus error: %v", err)
	}
	if len(changed) != 1 || changed[0] != batch[0] {
		t.Fatalf("changed = %v, want only the stored-public file", changed)
	}
	if !fr.statusRequirePublic {
		t.Error("requirePublic must be true when privatizing")
	}
	if sr.deletedByFile != nil {
		t.Error("privatizing must not touch shares")
	}
}

func TestChangeStatus_RejectsUnknownStatus(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	svc := NewFileService(db, &fakeRepoManager{}, &fakeBlobStore{}, nil, nopLogger{})

	_, err := svc.ChangeStatus(context.Background(), "o", ids(1), models.FileStatus("hidden"))
	if !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("err = %v, want ErrorValidation", err)
	}
}

func TestListFiles_CacheHit(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	cached := []models.FileListItem{{EffectiveStatus: models.EffectiveShared}}
	cache := &fakeListingCache{getOut: cached}
	fr := &fakeFilesRepo{listErr: errors.New("must not reach the database")}
	svc := NewFileService(db, &fakeRepoManager{files: fr}, &fakeBlobStore{}, cache, nopLogger{})

	items, err := svc.ListFiles(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListFiles error: %v", err)
	}
	if len(items) != 1 || items[0].EffectiveStatus != models.EffectiveShared {
		t.Fatalf("items = %v, want the cached listing", items)
	}
}

func TestListFiles_CacheMissPopulates(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	fr := &fakeFilesRepo{listOut: []models.FileListItem{{VersionCount: 2}}}
	cache := &fakeListingCache{}
	svc := NewFileService(db, &fakeRepoManager{files: fr}, &fakeBlobStore{}, cache, nopLogger{})

	items, err := svc.ListFiles(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListFiles error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %v, want the repository listing", items)
	}
	if _, ok := cache.setByUser["u1"]; !ok {
		t.Error("listing was not written to the cache")
	}
}

func TestUpload_NewFileUsesOwnerDefault(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	fr := &fakeFilesRepo{}
	vr := &fakeVersionsRepo{}
	ur := &fakeUsersRepo{getOut: &models.User{ID: "owner-1", PublicByDefault: true}}
	blobs := &fakeBlobStore{}
	svc := NewFileService(db, &fakeRepoManager{files: fr, versions: vr, users: ur}, blobs, nil, nopLogger{})

	file, version, err := svc.Upload(context.Background(), "owner-1", "", "photo.jpg", strings.NewReader("pixels"), false)
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if file.Status != models.StatusPublic {
		t.Errorf("status = %q, want owner default public", file.Status)
	}
	if version.SizeBytes != int64(len("pixels")) {
		t.Errorf("size = %d, want %d", version.SizeBytes, len("pixels"))
	}
	if fr.created == nil {
		t.Error("file row was not created")
	}
	if vr.created == nil {
		t.Error("version row was not created")
	}
	if blobs.putPath == "" {
		t.Error("blob was not written")
	}
}

func TestUpload_TxFailureRemovesBlob(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin().WillReturnError(errors.New("connection lost"))

	ur := &fakeUsersRepo{getOut: &models.User{ID: "o"}}
	blobs := &fakeBlobStore{}
	svc := NewFileService(db, &fakeRepoManager{files: &fakeFilesRepo{}, versions: &fakeVersionsRepo{}, users: ur}, blobs, nil, nopLogger{})

	_, _, err := svc.Upload(context.Background(), "o", "", "a.txt", strings.NewReader("x"), false)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(blobs.removed) != 1 {
		t.Errorf("orphaned blob was not removed: %v", blobs.removed)
	}
}

func TestUpload_ExistingFileRequiresWriteAccess(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	fr := &fakeFilesRepo{} // empty selection: no authorization
	svc := NewFileService(db, &fakeRepoManager{files: fr}, &fakeBlobStore{}, nil, nopLogger{})

	_, _, err := svc.Upload(context.Background(), "stranger", uuid.New().String(), "", strings.NewReader("x"), false)
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("err = %v, want ErrorUnauthorized", err)
	}
}

func TestDownload_EncryptedRequiresKey(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	fileID := uuid.New().String()
	fr := &fakeFilesRepo{accessibleOut: &models.File{ID: fileID, OwnerID: "o", Name: "secret.bin"}}
	vr := &fakeVersionsRepo{latestOut: &models.Version{ID: uuid.New().String(), FileID: fileID, Encrypted: true}}
	svc := NewFileService(db, &fakeRepoManager{files: fr, versions: vr}, &fakeBlobStore{}, nil, nopLogger{})

	_, _, _, err := svc.Download(context.Background(), "o", fileID, "")
	if !errors.Is(err, common.ErrKeyRequired) {
		t.Fatalf("err = %v, want ErrKeyRequired", err)
	}

	blobs := &fakeBlobStore{openOut: io.NopCloser(strings.NewReader("data"))}
	svc = NewFileService(db, &fakeRepoManager{files: fr, versions: vr}, blobs, nil, nopLogger{})
	_, _, rc, err := svc.Download(context.Background(), "o", fileID, "hunter2")
	if err != nil {
		t.Fatalf("Download with key error: %v", err)
	}
	rc.Close()
}
