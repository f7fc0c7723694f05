package models

import "time"

// SharePermission is the level granted to a share's grantee.
type SharePermission string

const (
	PermissionRead  SharePermission = "read"
	PermissionWrite SharePermission = "write"
	PermissionAdmin SharePermission = "admin"
)

// Valid reports whether p is a known permission.
func (p SharePermission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite || p == PermissionAdmin
}

// Share grants one user access to one file. At most one share exists per
// (FileID, UserID) pair.
type Share struct {
	FileID     string
	UserID     string
	Permission SharePermission
	CreatedAt  time.Time
}
