// Package filestore persists uploaded files (homework solutions, message
// attachments, teaching materials, profile pictures) under one upload
// directory. Stored names are generated, never taken from the client, so a
// crafted original name cannot escape the directory or collide with another
// upload.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrBadFileID = errors.New("filestore: invalid file id")

// Store is a directory-backed file store.
type Store struct {
	dir string
}

// New creates the upload directory if needed and returns a Store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the reader's content to a new file and returns the generated
// file id. The original name contributes only its extension.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	id := uuid.NewString() + safeExt(originalName)
	f, err := os.Create(filepath.Join(s.dir, id))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return id, nil
}

// Path resolves a stored file id to its filesystem path. IDs containing path
// separators are rejected outright.
func (s *Store) Path(fileID string) (string, error) {
	if fileID == "" || fileID != filepath.Base(fileID) || strings.ContainsAny(fileID, `/\`) {
		return "", ErrBadFileID
	}
	return filepath.Join(s.dir, fileID), nil
}

// Remove deletes a stored file. Callers treat deletion as best-effort; a
// missing file is not an error.
func (s *Store) Remove(fileID string) error {
	p, err := s.Path(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// safeExt keeps a short alphanumeric extension from the original name and
// discards anything else.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
