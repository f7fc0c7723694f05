package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/auth"
	"github.com/filevault/filevault/internal/server/models"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
	"github.com/filevault/filevault/internal/server/repositories/users"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserService handles registration, login and preference updates.
type UserService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	retention *RetentionService
	logger    logging.Logger
	secretKey string
	tokenTTL  time.Duration
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, retention *RetentionService,
	logger logging.Logger, secretKey string, tokenTTL time.Duration) *UserService {
	return &UserService{
		db:        db,
		repos:     repos,
		retention: retention,
		logger:    logger.With("module", "user_service"),
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
	}
}

// Register creates an account with the default preferences: necessary-only
// notifications, private-by-default uploads, extensions shown, history kept.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	user := &models.User{
		ID:                uuid.New().String(),
		Email:             email,
		PasswordHash:      string(hash),
		NotificationLevel: models.NotificationNecessary,
		PublicByDefault:   false,
		ShowExtension:     true,
		RetainVersions:    true,
	}

	created, err := s.repos.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return created, nil
}

// Login verifies the credentials and issues an access token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		// never leak storage detail on the credentials path
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return "", common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, []byte(s.secretKey), s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}
	return token, nil
}

// GetProfile returns the user's account record.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	return s.repos.Users(s.db).GetByID(ctx, userID)
}

// UpdatePreferences stores the new preference set. Turning history
// retention off prunes the existing version history immediately; the prune
// is best-effort and its failures do not undo the preference change.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, prefs users.Preferences) error {
	if err := validateID(userID); err != nil {
		return err
	}
	if !prefs.NotificationLevel.Valid() {
		return fmt.Errorf("%w: unknown notification level %q", common.ErrorValidation, prefs.NotificationLevel)
	}

	before, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repos.Users(s.db).UpdatePreferences(ctx, userID, prefs); err != nil {
		return fmt.Errorf("preference update failed: %w", err)
	}

	if before.RetainVersions && !prefs.RetainVersions {
		n, err := s.retention.PruneVersions(ctx, userID)
		if err != nil {
			s.logger.Error(ctx, "post-update version pruning failed", "user_id", userID, "error", err)
		} else if n > 0 {
			s.logger.Info(ctx, "version history pruned", "user_id", userID, "versions_removed", n)
		}
	}
	return nil
}
