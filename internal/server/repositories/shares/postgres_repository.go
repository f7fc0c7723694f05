// Package shares persists per-file sharing grants.
package shares

import (
	"context"
	"fmt"

	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/server/models"
)

// removableFilter mirrors the files package authorization predicate, applied
// through the join to the share's file.
const removableFilter = `(f.owner_id = $1 OR EXISTS (
		SELECT 1 FROM shares w
		WHERE w.file_id = f.id AND w.user_id = $1 AND w.permission = 'write'
	))`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, share *models.Share) error {
	query := `INSERT INTO shares (file_id, user_id, permission)
		VALUES ($1, $2, $3)
		ON CONFLICT (file_id, user_id)
		DO UPDATE SET permission = EXCLUDED.permission, created_at = now()`

	_, err := r.db.ExecContext(ctx, query, share.FileID, share.UserID, share.Permission)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectRemovable(ctx context.Context, actorID string, fileIDs []string, granteeID string) ([]Removed, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT sh.file_id, sh.user_id, sh.permission, f.owner_id FROM shares sh
		JOIN files f ON f.id = sh.file_id
		WHERE %s AND sh.file_id IN (%s)%s`,
		removableFilter, dbx.Placeholders(2, len(fileIDs)), r.granteeGuard(granteeID, len(fileIDs)))

	args := dbx.IDArgs([]any{actorID}, fileIDs)
	if granteeID != "" {
		args = append(args, granteeID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}
	defer rows.Close()

	var result []Removed
	for rows.Next() {
		var item Removed
		if err := rows.Scan(&item.FileID, &item.UserID, &item.Permission, &item.OwnerID); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteAuthorized(ctx context.Context, actorID string, fileIDs []string, granteeID string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM shares sh
		USING files f
		WHERE f.id = sh.file_id AND %s AND sh.file_id IN (%s)%s`,
		removableFilter, dbx.Placeholders(2, len(fileIDs)), r.granteeGuard(granteeID, len(fileIDs)))

	args := dbx.IDArgs([]any{actorID}, fileIDs)
	if granteeID != "" {
		args = append(args, granteeID)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SelectByFileIDs(ctx context.Context, fileIDs []string) ([]models.Share, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT file_id, user_id, permission FROM shares
		WHERE file_id IN (%s)`, dbx.Placeholders(1, len(fileIDs)))

	rows, err := r.db.QueryContext(ctx, query, dbx.IDArgs(nil, fileIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}
	defer rows.Close()

	var result []models.Share
	for rows.Next() {
		var item models.Share
		if err := rows.Scan(&item.FileID, &item.UserID, &item.Permission); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByFileIDs(ctx context.Context, fileIDs []string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM shares
		WHERE file_id IN (%s)`, dbx.Placeholders(1, len(fileIDs)))

	res, err := r.db.ExecContext(ctx, query, dbx.IDArgs(nil, fileIDs)...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// granteeGuard appends the optional single-grantee condition. The grantee
// placeholder comes after the actor and the file ids.
func (r *PostgresRepository) granteeGuard(granteeID string, idCount int) string {
	if granteeID == "" {
		return ""
	}
	return fmt.Sprintf(" AND sh.user_id = $%d", idCount+2)
}
