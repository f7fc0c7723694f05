package repomanager

import (
	"context"
	"database/sql"

	"github.com/filevault/filevault/internal/dbx"
	"github.com/filevault/filevault/internal/server/repositories/files"
	"github.com/filevault/filevault/internal/server/repositories/notifications"
	"github.com/filevault/filevault/internal/server/repositories/shares"
	"github.com/filevault/filevault/internal/server/repositories/users"
	"github.com/filevault/filevault/internal/server/repositories/versions"
)

// RepositoryManager hands out repositories bound to a DB handle. Passing a
// transactional handle from dbx.WithTx yields repositories that operate
// inside that transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Versions(db dbx.DBTX) versions.Repository
	Shares(db dbx.DBTX) shares.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
