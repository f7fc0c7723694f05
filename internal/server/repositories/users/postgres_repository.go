// Package users persists user accounts and their storage/notification
// preferences.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/server/models"
)

// uniqueViolation is the postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (id, email, password_hash, notification_level,
			public_by_default, show_extension, retain_versions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.NotificationLevel,
		user.PublicByDefault, user.ShowExtension, user.RetainVersions)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, `email = $1`, email)
}

func (r *PostgresRepository) getBy(ctx context.Context, cond string, arg any) (*models.User, error) {
	query := fmt.Sprintf(`SELECT id, email, password_hash, notification_level,
			public_by_default, show_extension, retain_versions, created_at
		FROM users
		WHERE %s`, cond)

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.NotificationLevel,
			&user.PublicByDefault, &user.ShowExtension, &user.RetainVersions, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) UpdatePreferences(ctx context.Context, userID string, prefs Preferences) error {
	query := `UPDATE users SET notification_level = $2, public_by_default = $3,
			show_extension = $4, retain_versions = $5
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID,
		prefs.NotificationLevel, prefs.PublicByDefault, prefs.ShowExtension, prefs.RetainVersions)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) NotificationLevels(ctx context.Context, userIDs []string) (map[string]models.NotificationLevel, error) {
	if len(userIDs) == 0 {
		return map[string]models.NotificationLevel{}, nil
	}

	query := fmt.Sprintf(`SELECT id, notification_level FROM users
		WHERE id IN (%s)`, dbx.Placeholders(1, len(userIDs)))

	rows, err := r.db.QueryContext(ctx, query, dbx.IDArgs(nil, userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.NotificationLevel, len(userIDs))
	for rows.Next() {
		var id string
		var level models.NotificationLevel
		if err := rows.Scan(&id, &level); err != nil {
			return nil, err
		}
		result[id] = level
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
