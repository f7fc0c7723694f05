// Package blobstore stores version blobs. The database is the authoritative
// record; the blob store is a derived, eventually consistent byte cache
// keyed by version id. All removal operations are best-effort: callers log
// failures and never roll back committed database state because of them.
package blobstore

import (
	"context"
	"io"
	"path"
)

// BlobStore is the physical storage collaborator of the lifecycle engine.
type BlobStore interface {
	// Put writes the blob at the given path, creating parents as needed,
	// and returns the byte count and hex SHA-256 of the written content.
	Put(ctx context.Context, blobPath string, r io.Reader) (int64, string, error)

	// Open returns a reader over the blob.
	Open(ctx context.Context, blobPath string) (io.ReadCloser, error)

	// Remove deletes one blob. Removing a missing blob is not an error.
	Remove(ctx context.Context, blobPath string) error

	// RemoveFileTree deletes every blob of one file and, if that leaves
	// the owner without any files, the owner's directory as well.
	RemoveFileTree(ctx context.Context, ownerID, fileID string) error
}

// VersionPath derives the blob location for a version:
// <ownerID>/<fileID>/<versionID><ext>. The display name never participates,
// which is what makes renaming a pure metadata operation.
func VersionPath(ownerID, fileID, versionID, ext string) string {
	return path.Join(ownerID, fileID, versionID+ext)
}
