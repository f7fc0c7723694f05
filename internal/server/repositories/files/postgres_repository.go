// Package files persists file records and implements the authorized batch
// mutations of the lifecycle engine.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/server/models"
)

// authorizedFilter is the authorization predicate every batch selection and
// mutation embeds: the actor owns the file or holds a write share on it.
// Keeping the predicate textually identical on both sides of a transaction
// is what makes the returned id list exactly the mutated rows.
const authorizedFilter = `(f.owner_id = $1 OR EXISTS (
		SELECT 1 FROM shares s
		WHERE s.file_id = f.id AND s.user_id = $1 AND s.permission = 'write'
	))`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `INSERT INTO files (id, owner_id, name, status)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, file.ID, file.OwnerID, file.Name, file.Status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT id, owner_id, name, status, created_at, updated_at FROM files
		WHERE id = $1`

	file := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&file.ID, &file.OwnerID, &file.Name, &file.Status, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) GetAccessible(ctx context.Context, id, userID string) (*models.File, error) {
	// An anonymous request carries no actor id, and an empty string does
	// not bind against the uuid columns; those requests only ever reach
	// public files.
	query := `SELECT f.id, f.owner_id, f.name, f.status, f.created_at, f.updated_at
		FROM files f
		WHERE f.id = $1 AND f.status = 'public'`
	args := []any{id}
	if userID != "" {
		query = `SELECT f.id, f.owner_id, f.name, f.status, f.created_at, f.updated_at
			FROM files f
			LEFT JOIN shares s ON s.file_id = f.id AND s.user_id = $2
			WHERE f.id = $1 AND (f.owner_id = $2 OR s.user_id IS NOT NULL OR f.status = 'public')`
		args = append(args, userID)
	}

	file := &models.File{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&file.ID, &file.OwnerID, &file.Name, &file.Status, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) SelectAuthorized(ctx context.Context, actorID string, ids []string) ([]*models.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT f.id, f.owner_id, f.name, f.status FROM files f
		WHERE %s AND f.id IN (%s)
		ORDER BY array_position(ARRAY[%s]::uuid[], f.id)`,
		authorizedFilter, dbx.Placeholders(2, len(ids)), dbx.Placeholders(2, len(ids)))

	rows, err := r.db.QueryContext(ctx, query, dbx.IDArgs([]any{actorID}, ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		item := &models.File{}
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Status); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) RenameAuthorized(ctx context.Context, actorID string, ids []string, name string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`UPDATE files f SET name = $%d, updated_at = now()
		WHERE %s AND f.id IN (%s)
		RETURNING f.id`,
		len(ids)+2, authorizedFilter, dbx.Placeholders(2, len(ids)))

	args := append(dbx.IDArgs([]any{actorID}, ids), name)
	return r.queryIDs(ctx, query, args...)
}

func (r *PostgresRepository) DeleteAuthorized(ctx context.Context, actorID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`DELETE FROM files f
		WHERE %s AND f.id IN (%s)
		RETURNING f.id`,
		authorizedFilter, dbx.Placeholders(2, len(ids)))

	return r.queryIDs(ctx, query, dbx.IDArgs([]any{actorID}, ids)...)
}

func (r *PostgresRepository) UpdateStatusAuthorized(ctx context.Context, actorID string, ids []string, status models.FileStatus, requirePublic bool) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	guard := ""
	if requirePublic {
		// refuses to privatize a file in effective "shared" state:
		// such a file is stored as private already, so the update
		// matches nothing
		guard = ` AND f.status = 'public'`
	}

	query := fmt.Sprintf(`UPDATE files f SET status = $%d, updated_at = now()
		WHERE %s AND f.id IN (%s)%s
		RETURNING f.id`,
		len(ids)+2, authorizedFilter, dbx.Placeholders(2, len(ids)), guard)

	args := append(dbx.IDArgs([]any{actorID}, ids), string(status))
	return r.queryIDs(ctx, query, args...)
}

func (r *PostgresRepository) CanAdminister(ctx context.Context, fileID, actorID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM files f
		WHERE f.id = $1 AND (f.owner_id = $2 OR EXISTS (
			SELECT 1 FROM shares s
			WHERE s.file_id = f.id AND s.user_id = $2 AND s.permission = 'admin'
		))
	)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, fileID, actorID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.FileListItem, error) {
	query := `SELECT f.id, f.owner_id, f.name, f.status, f.created_at, f.updated_at,
		CASE
			WHEN f.status = 'public' THEN 'public'
			WHEN EXISTS (SELECT 1 FROM shares s WHERE s.file_id = f.id) THEN 'shared'
			ELSE 'private'
		END AS effective_status,
		(SELECT COUNT(*) FROM versions v WHERE v.file_id = f.id) AS version_count,
		(SELECT COUNT(*) FROM shares s WHERE s.file_id = f.id) AS share_count,
		COALESCE((SELECT v.size_bytes FROM versions v WHERE v.file_id = f.id
			ORDER BY v.created_at DESC LIMIT 1), 0) AS size_bytes
		FROM files f
		WHERE f.owner_id = $1
		ORDER BY f.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []models.FileListItem
	for rows.Next() {
		var item models.FileListItem
		err := rows.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Status,
			&item.CreatedAt, &item.UpdatedAt, &item.EffectiveStatus,
			&item.VersionCount, &item.ShareCount, &item.SizeBytes)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT id, owner_id, name, status FROM files
		WHERE owner_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		item := &models.File{}
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Status); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
