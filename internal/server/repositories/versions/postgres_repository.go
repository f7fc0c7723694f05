// Package versions persists the per-file version ledger.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/filevault/filevault/internal/common"
	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, version *models.Version) error {
	query := `INSERT INTO versions (id, file_id, sha256, size_bytes, encrypted)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		version.ID, version.FileID, version.Sha256, version.SizeBytes, version.Encrypted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.Version, error) {
	query := `SELECT id, file_id, sha256, size_bytes, encrypted, created_at FROM versions
		WHERE file_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.Version
	for rows.Next() {
		item := &models.Version{}
		err := rows.Scan(&item.ID, &item.FileID, &item.Sha256,
			&item.SizeBytes, &item.Encrypted, &item.CreatedAt)
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

func (r *PostgresRepository) LatestByFile(ctx context.Context, fileID string) (*models.Version, error) {
	query := `SELECT id, file_id, sha256, size_bytes, encrypted, created_at FROM versions
		WHERE file_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	version := &models.Version{}
	err := r.db.QueryRowContext(ctx, query, fileID).
		Scan(&version.ID, &version.FileID, &version.Sha256,
			&version.SizeBytes, &version.Encrypted, &version.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Version, error) {
	query := `SELECT id, file_id, sha256, size_bytes, encrypted, created_at FROM versions
		WHERE id = $1`

	version := &models.Version{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&version.ID, &version.FileID, &version.Sha256,
			&version.SizeBytes, &version.Encrypted, &version.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`DELETE FROM versions
		WHERE id IN (%s)
		RETURNING id`, dbx.Placeholders(1, len(ids)))

	rows, err := r.db.QueryContext(ctx, query, dbx.IDArgs(nil, ids)...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deleted, nil
}
