// Package blobstore keeps raw receipt PDFs on disk, addressed by the
// sha256 of their content. Blobs serve as the audit trail and as the
// proof document re-submitted on approval.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
)

// Store is a content-addressed blob store.
type Store interface {
	// Put writes the blob and returns its content hash and storage path.
	// Re-putting identical content is a no-op returning the same key.
	Put(ctx context.Context, data []byte) (hash string, path string, err error)
	// Get returns the blob for a content hash.
	Get(ctx context.Context, hash string) ([]byte, error)
}

// ErrBlobNotFound is returned when no blob exists for a hash.
var ErrBlobNotFound = errors.New("blobstore: blob not found")

// FileStore stores blobs under root/<h[:2]>/<h>.pdf.
type FileStore struct {
	root string
}

// NewFileStore constructs a store rooted at dir.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("blobstore: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

// Put writes the blob if it is not already present.
func (s *FileStore) Put(ctx context.Context, data []byte) (string, string, error) {
	_ = ctx
	if s == nil || s.root == "" {
		return "", "", errors.New("blobstore: empty root")
	}
	if len(data) == 0 {
		return "", "", errors.New("blobstore: empty blob")
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	path := s.pathFor(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", err
	}
	return hash, path, nil
}

// Get reads a blob back by hash.
func (s *FileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	_ = ctx
	if hash == "" {
		return nil, ErrBlobNotFound
	}
	data, err := os.ReadFile(s.pathFor(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) pathFor(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, prefix, hash+".pdf")
}

var _ Store = (*FileStore)(nil)
