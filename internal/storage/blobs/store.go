// -----------------------------------------------------------------------
// Blob Store - Filesystem staging area for uploaded payloads
// -----------------------------------------------------------------------

package blobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
)

// Store stages upload payloads on the local filesystem. Document records
// carry only the content reference; the extraction backend pulls bytes
// through Open.
type Store struct {
	root   string
	logger arbor.ILogger
}

// NewStore creates a blob store rooted at the given directory
func NewStore(logger arbor.ILogger, root string) (interfaces.BlobStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("blob storage path is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Put stages the payload under the document id and returns its reference.
// Writes go to a temp file first so a crash never leaves a partial blob
// behind a valid reference.
func (s *Store) Put(ctx context.Context, documentID string, r io.Reader) (string, error) {
	if documentID == "" {
		return "", fmt.Errorf("document ID is required")
	}

	ref := documentID + ".bin"
	finalPath := filepath.Join(s.root, ref)

	tmp, err := os.CreateTemp(s.root, documentID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}

	return ref, nil
}

// Open returns a reader for the staged payload
func (s *Store) Open(ctx context.Context, contentRef string) (io.ReadCloser, error) {
	path, err := s.resolve(contentRef)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", contentRef)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Remove deletes the staged payload. Missing blobs are not an error.
func (s *Store) Remove(ctx context.Context, contentRef string) error {
	if contentRef == "" {
		return nil
	}
	path, err := s.resolve(contentRef)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}

// resolve maps a reference to a path, rejecting anything that escapes the
// blob root
func (s *Store) resolve(contentRef string) (string, error) {
	if contentRef == "" {
		return "", fmt.Errorf("content reference is required")
	}
	cleaned := filepath.Clean(contentRef)
	if strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid content reference: %s", contentRef)
	}
	return filepath.Join(s.root, cleaned), nil
}
