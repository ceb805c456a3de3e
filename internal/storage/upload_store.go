package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps a single upload.
const DefaultMaxUploadBytes = 5 << 20

var allowedImageExts = []string{".jpg", ".jpeg", ".png"}

// UploadStore saves user-provided images under a directory with random names.
type UploadStore struct {
	dir      string
	maxBytes int64
}

// NewUploadStore creates dir if needed.
func NewUploadStore(dir string, maxBytes int64) (*UploadStore, error) {
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: served publicly
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the upload directory.
func (u *UploadStore) Dir() string {
	return u.dir
}

// MaxBytes returns the size limit of a single upload.
func (u *UploadStore) MaxBytes() int64 {
	return u.maxBytes
}

// Save copies r into a new file named after a random UUID with the extension
// of originalName and returns the stored name.
func (u *UploadStore) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !slices.Contains(allowedImageExts, ext) {
		return "", fmt.Errorf("%w: extension %q not allowed", ErrInvalid, ext)
	}
	name := uuid.NewString() + ext
	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(r, u.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > u.maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, u.maxBytes)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(u.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return name, nil
}

// Remove deletes a stored upload. Missing files are ignored.
func (u *UploadStore) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("%w: bad upload name %q", ErrInvalid, name)
	}
	if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}
