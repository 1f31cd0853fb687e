// Package upload implements the shared-secret-gated file store: saving
// uploaded files under randomized names, locating them by name fragment
// and purging them on demand or by age.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyFile is returned when no file or an empty name is submitted.
	ErrEmptyFile = errors.New("empty file")
	// ErrExtensionNotAllowed is returned for file types outside the allow list.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	// ErrFileNotFound is returned when no stored file matches the name.
	ErrFileNotFound = errors.New("file not found")
)

var allowedExtensions = map[string]struct{}{
	"txt":  {},
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
}

// Store keeps uploaded files in a single directory on disk.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed and returns the store.
func NewStore(dir string) (*Store, error) {
	const op = "upload.NewStore"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create upload dir: %w", op, err)
	}

	return &Store{dir: dir}, nil
}

// sanitizeName keeps only characters safe for a flat file name.
func sanitizeName(name string) string {
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}

// Save stores the file contents under a uuid-prefixed sanitized name and
// returns that name.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	const op = "upload.Store.Save"

	name = sanitizeName(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyFile)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%s: %w", op, ErrExtensionNotAllowed)
	}

	stored := uuid.NewString() + "_" + name

	f, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", fmt.Errorf("%s: failed to create file: %w", op, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("%s: failed to write file: %w", op, err)
	}

	return stored, nil
}

// Find returns the stored name of the first file containing the given
// fragment, mirroring the lookup-by-name-fragment retrieval page.
func (s *Store) Find(fragment string) (string, error) {
	const op = "upload.Store.Find"

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("%s: failed to read upload dir: %w", op, err)
	}

	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), fragment) {
			return e.Name(), nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrFileNotFound)
}

// Path returns the on-disk path for a stored name, refusing anything
// that escapes the upload directory.
func (s *Store) Path(stored string) (string, error) {
	const op = "upload.Store.Path"

	if stored != filepath.Base(stored) {
		return "", fmt.Errorf("%s: %w", op, ErrFileNotFound)
	}

	path := filepath.Join(s.dir, stored)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrFileNotFound)
	}

	return path, nil
}

// Purge removes every stored file and returns how many were removed.
func (s *Store) Purge() (int, error) {
	return s.purge(func(os.DirEntry) bool { return true })
}

// PurgeOlderThan removes files whose modification time is older than the
// given age, for the periodic cleanup job.
func (s *Store) PurgeOlderThan(age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)

	return s.purge(func(e os.DirEntry) bool {
		info, err := e.Info()
		return err == nil && info.ModTime().Before(cutoff)
	})
}

func (s *Store) purge(match func(os.DirEntry) bool) (int, error) {
	const op = "upload.Store.purge"

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to read upload dir: %w", op, err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !match(e) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("%s: failed to remove file: %w", op, err)
		}
		removed++
	}

	return removed, nil
}
