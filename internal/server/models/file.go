package models

import (
	"path/filepath"
	"time"
)

// FileStatus is the stored visibility flag. Only private and public are
// ever persisted; "shared" exists solely as a derived effective status.
type FileStatus string

const (
	StatusPrivate FileStatus = "private"
	StatusPublic  FileStatus = "public"
)

// Valid reports whether s is a storable status.
func (s FileStatus) Valid() bool {
	return s == StatusPrivate || s == StatusPublic
}

// EffectiveStatus is the derived visibility combining the stored status
// with share existence. Never stored.
type EffectiveStatus string

const (
	EffectivePrivate EffectiveStatus = "private"
	EffectiveShared  EffectiveStatus = "shared"
	EffectivePublic  EffectiveStatus = "public"
)

// File is a stored file record. It owns an append-only list of versions
// (at least one once the file exists) and a set of shares.
type File struct {
	// ID is the stable opaque identifier (UUID).
	ID string
	// OwnerID references the owning user. The owner implicitly holds
	// admin-equivalent permission; this is never materialized as a share.
	OwnerID string
	// Name is the display name including extension. Blobs are addressed
	// by version id, so renaming never touches the filesystem.
	Name string
	// Status holds private or public; "shared" is derived.
	Status FileStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ext returns the file's extension including the leading dot, or "".
func (f *File) Ext() string {
	return filepath.Ext(f.Name)
}

// FileListItem is a file row enriched with the derived fields the listing
// and the UI reason about.
type FileListItem struct {
	File
	EffectiveStatus EffectiveStatus
	VersionCount    int
	ShareCount      int
	SizeBytes       int64
}
