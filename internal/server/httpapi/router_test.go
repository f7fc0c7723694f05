package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/auth"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/users"
)

var testSecret = []byte("test-secret")

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type fakeFileAPI struct {
	renamed []string
	deleted []string
	changed []string
	listOut []models.FileListItem
	err     error

	downloadFile    *models.File
	downloadVersion *models.Version
	downloadBody    string
	downloadErr     error
	gotActor        string
}

func (f *fakeFileAPI) RenameFiles(ctx context.Context, actorID string, fileIDs []string, newName string) ([]string, error) {
	f.gotActor = actorID
	return f.renamed, f.err
}

func (f *fakeFileAPI) DeleteFiles(ctx context.Context, actorID string, fileIDs []string) ([]string, error) {
	return f.deleted, f.err
}

func (f *fakeFileAPI) ChangeStatus(ctx context.Context, actorID string, fileIDs []string, status models.FileStatus) ([]string, error) {
	return f.changed, f.err
}

func (f *fakeFileAPI) ListFiles(ctx context.Context, userID string) ([]models.FileListItem, error) {
	return f.listOut, f.err
}

func (f *fakeFileAPI) Upload(ctx context.Context, ownerID, fileID, name string, r io.Reader, encrypted bool) (*models.File, *models.Version, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.File{ID: "f1", Name: name, Status: models.StatusPrivate}, &models.Version{ID: "v1"}, nil
}

func (f *fakeFileAPI) Download(ctx context.Context, actorID, fileID, key string) (*models.File, *models.Version, io.ReadCloser, error) {
	f.gotActor = actorID
	if f.downloadErr != nil {
		return nil, nil, nil, f.downloadErr
	}
	return f.downloadFile, f.downloadVersion, io.NopCloser(strings.NewReader(f.downloadBody)), nil
}

type fakeShareAPI struct {
	addErr   error
	affected []string
	listOut  []models.Share
}

func (f *fakeShareAPI) AddShare(ctx context.Context, actorID, fileID, granteeID string, perm models.SharePermission) error {
	return f.addErr
}

func (f *fakeShareAPI) RemoveShares(ctx context.Context, actorID string, fileIDs []string, granteeID string) ([]string, error) {
	return f.affected, nil
}

func (f *fakeShareAPI) ListShares(ctx context.Context, actorID string, fileIDs []string) ([]models.Share, error) {
	return f.listOut, nil
}

type fakeUserAPI struct {
	registerOut *models.User
	registerErr error
	loginToken  string
	loginErr    error
	profileOut  *models.User
	prefsErr    error
}

func (f *fakeUserAPI) Register(ctx context.Context, email, password string) (*models.User, error) {
	return f.registerOut, f.registerErr
}

func (f *fakeUserAPI) Login(ctx context.Context, email, password string) (string, error) {
	return f.loginToken, f.loginErr
}

func (f *fakeUserAPI) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return f.profileOut, nil
}

func (f *fakeUserAPI) UpdatePreferences(ctx context.Context, userID string, prefs users.Preferences) error {
	return f.prefsErr
}

type fakeNotificationAPI struct {
	listOut  []*models.Notification
	clearedN int64
}

func (f *fakeNotificationAPI) List(ctx context.Context, userID string) ([]*models.Notification, error) {
	return f.listOut, nil
}

func (f *fakeNotificationAPI) Clear(ctx context.Context, userID string) (int64, error) {
	return f.clearedN, nil
}

func newTestRouter(t *testing.T, files *fakeFileAPI, shares *fakeShareAPI, usersAPI *fakeUserAPI, notifications *fakeNotificationAPI) http.Handler {
	t.Helper()
	if files == nil {
		files = &fakeFileAPI{}
	}
	if shares == nil {
		shares = &fakeShareAPI{}
	}
	if usersAPI == nil {
		usersAPI = &fakeUserAPI{}
	}
	if notifications == nil {
		notifications = &fakeNotificationAPI{}
	}
	h := Handlers{
		Files:         NewFileHandler(files, nopLogger{}),
		Shares:        NewShareHandler(shares, nopLogger{}),
		Users:         NewUserHandler(usersAPI, nopLogger{}),
		Notifications: NewNotificationHandler(notifications, nopLogger{}),
	}
	return NewRouter(h, testSecret, nopLogger{})
}

func authHeader(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRename_OutcomeThreeWay(t *testing.T) {
	batch := []string{"00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002"}

	cases := []struct {
		name    string
		renamed []string
		want    string
	}{
		{"full success", batch, outcomeOK},
		{"partial success", batch[:1], outcomePartial},
		{"total failure", nil, outcomeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeFileAPI{renamed: tc.renamed}, nil, nil, nil)
			rec := doJSON(t, router, http.MethodPost, "/api/files/rename", authHeader(t, "u1"),
				renameRequest{FileIDs: batch, NewName: "x"})

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var resp batchResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Outcome != tc.want {
				t.Errorf("outcome = %q, want %q", resp.Outcome, tc.want)
			}
			if resp.RequestedCount != 2 || resp.AffectedCount != len(tc.renamed) {
				t.Errorf("counts = (%d, %d)", resp.RequestedCount, resp.AffectedCount)
			}
		})
	}
}

func TestAuth_MissingAndBadToken(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/files", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/files", "Bearer garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestAuth_SubjectReachesService(t *testing.T) {
	files := &fakeFileAPI{renamed: []string{"a"}}
	router := newTestRouter(t, files, nil, nil, nil)

	doJSON(t, router, http.MethodPost, "/api/files/rename", authHeader(t, "user-42"),
		renameRequest{FileIDs: []string{"a"}, NewName: "x"})

	if files.gotActor != "user-42" {
		t.Fatalf("actor = %q, want token subject", files.gotActor)
	}
}

func TestValidationErrorMapsTo400(t *testing.T) {
	files := &fakeFileAPI{err: common.ErrorValidation}
	router := newTestRouter(t, files, nil, nil, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/files/delete", authHeader(t, "u1"),
		deleteRequest{FileIDs: []string{"x"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownload_AnonymousPublicFile(t *testing.T) {
	files := &fakeFileAPI{
		downloadFile:    &models.File{ID: "f1", Name: "pic.jpg", Status: models.StatusPublic},
		downloadVersion: &models.Version{ID: "v1"},
		downloadBody:    "jpeg-bytes",
	}
	router := newTestRouter(t, files, nil, nil, nil)

	rec := doJSON(t, router, http.MethodGet, "/files/f1/download", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if files.gotActor != "" {
		t.Errorf("actor = %q, want anonymous", files.gotActor)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDownload_KeyRequiredMapsTo428(t *testing.T) {
	files := &fakeFileAPI{downloadErr: common.ErrKeyRequired}
	router := newTestRouter(t, files, nil, nil, nil)

	rec := doJSON(t, router, http.MethodGet, "/files/f1/download", "", nil)
	if rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("status = %d, want 428", rec.Code)
	}
}

func TestShareRemove_ReturnsBatchOutcome(t *testing.T) {
	shares := &fakeShareAPI{affected: []string{"f1"}}
	router := newTestRouter(t, nil, shares, nil, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/shares/remove", authHeader(t, "u1"),
		removeSharesRequest{FileIDs: []string{"f1", "f2"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Outcome != outcomePartial {
		t.Errorf("outcome = %q, want partial", resp.Outcome)
	}
}

func TestLogin_UnauthorizedMapsTo403(t *testing.T) {
	usersAPI := &fakeUserAPI{loginErr: common.ErrorUnauthorized}
	router := newTestRouter(t, nil, nil, usersAPI, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/login", "",
		credentialsRequest{Email: "a@example.com", Password: "nope"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestNotifications_MarkAllRead(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, &fakeNotificationAPI{clearedN: 3})

	rec := doJSON(t, router, http.MethodPost, "/api/notifications/read", authHeader(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["cleared"] != 3 {
		t.Errorf("cleared = %d, want 3", resp["cleared"])
	}
}
