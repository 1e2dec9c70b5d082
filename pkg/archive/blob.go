package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"custodia-hq/amber/pkg/datastore"
)

// BlobPath builds the store-relative path for an archive blob:
// {tenantId}/{dataType}/{archiveId}.json with ".gz" and ".enc" suffixes
// appended for compressed and encrypted blobs. Downstream consumers parse
// these paths, so the layout is a compatibility contract.
func BlobPath(tenantID string, dataType datastore.DataType, archiveID string, compressed, encrypted bool) string {
	name := archiveID + ".json"
	if compressed {
		name += ".gz"
	}
	if encrypted {
		name += ".enc"
	}
	return filepath.Join(tenantID, string(dataType), name)
}

// BlobStore persists archive blobs under store-relative paths.
type BlobStore interface {
	// Write persists a blob. Writes are atomic: readers never observe a
	// partially written blob.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns a blob's contents.
	Read(ctx context.Context, path string) ([]byte, error)

	// Remove deletes a blob. Removing a missing blob is not an error.
	Remove(ctx context.Context, path string) error

	// Close releases store resources.
	Close() error
}

// LocalBlobStore stores blobs on the local filesystem under a base
// directory.
type LocalBlobStore struct {
	baseDir string
}

// NewLocalBlobStore creates a filesystem blob store rooted at baseDir.
func NewLocalBlobStore(baseDir string) (*LocalBlobStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("blob store base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBlobStore{baseDir: baseDir}, nil
}

// Write persists data via a temp file and rename so a crash mid-write
// never leaves a truncated blob at the final path.
func (s *LocalBlobStore) Write(ctx context.Context, path string, data []byte) error {
	full := filepath.Join(s.baseDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize blob: %w", err)
	}
	return nil
}

// Read returns the blob at path.
func (s *LocalBlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, path))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Remove deletes the blob at path, ignoring blobs already gone.
func (s *LocalBlobStore) Remove(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(s.baseDir, path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}

// Close implements BlobStore. Local stores hold no resources.
func (s *LocalBlobStore) Close() error {
	return nil
}
