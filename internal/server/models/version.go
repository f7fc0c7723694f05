package models

import "time"

// Version is one immutable content snapshot of a file. Versions are
// append-only; the most recently created one is the file's current content.
// They are deleted only by retention pruning or file deletion.
type Version struct {
	// ID is the version identifier (UUID); the blob on disk is named by it.
	ID string
	// FileID references the owning file.
	FileID string

	// Sha256 is the hex content hash of the blob.
	Sha256 string
	// SizeBytes is the blob size.
	SizeBytes int64
	// Encrypted marks versions whose blob requires a caller-supplied
	// decryption key on download. The key itself is never stored.
	Encrypted bool

	CreatedAt time.Time
}
