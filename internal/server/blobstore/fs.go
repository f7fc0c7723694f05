package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/filevault/filevault/internal/filex"
)

// FSStore keeps blobs on the local filesystem under a base directory,
// one directory per owner, one sub-directory per file, one blob per version.
type FSStore struct {
	base string
}

// NewFSStore creates the base directory if needed and returns the store.
func NewFSStore(base string) (*FSStore, error) {
	if err := filex.EnsureDir(base); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(ctx context.Context, blobPath string, r io.Reader) (int64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}

	full := filepath.Join(s.base, filepath.FromSlash(blobPath))
	if err := filex.EnsureDir(filepath.Dir(full)); err != nil {
		return 0, "", err
	}

	f, err := os.Create(full)
	if err != nil {
		return 0, "", fmt.Errorf("create blob: %w", err)
	}

	h := sha256.New()
	n, err := io.Copy(f, io.TeeReader(r, h))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return 0, "", fmt.Errorf("write blob: %w", err)
	}

	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *FSStore) Open(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.base, filepath.FromSlash(blobPath)))
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *FSStore) Remove(ctx context.Context, blobPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.base, filepath.FromSlash(blobPath)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *FSStore) RemoveFileTree(ctx context.Context, ownerID, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ownerDir := filepath.Join(s.base, ownerID)
	if _, err := os.Stat(ownerDir); errors.Is(err, fs.ErrNotExist) {
		// nothing on disk for this owner, nothing to clean up
		return nil
	} else if err != nil {
		return fmt.Errorf("stat owner dir: %w", err)
	}

	if err := os.RemoveAll(filepath.Join(ownerDir, fileID)); err != nil {
		return fmt.Errorf("remove file dir: %w", err)
	}

	empty, err := filex.DirIsEmpty(ownerDir)
	if err != nil {
		return fmt.Errorf("read owner dir: %w", err)
	}
	if empty {
		if err := os.Remove(ownerDir); err != nil {
			return fmt.Errorf("remove owner dir: %w", err)
		}
	}
	return nil
}
