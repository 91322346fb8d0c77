// Package images provides picture decoding, WebP conversion and file storage.
package images

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Storage manages converted picture files in the uploads directory.
// Thread-safe for concurrent operations.
// IDs are file names including their extension (e.g. 1700000000000000000.webp).
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a new Storage rooted at dir, creating it if needed.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &Storage{
		basePath: dir,
	}, nil
}

// Dir returns the directory files are stored in.
func (s *Storage) Dir() string {
	return s.basePath
}

// Create stores picture data under id only if no file exists yet.
// An existing file yields an error matching fs.ErrExist.
func (s *Storage) Create(id string, imgData []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	if len(imgData) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := f.Write(imgData); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close image file: %w", err)
	}

	return nil
}

// Get retrieves picture data for id.
func (s *Storage) Get(id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found for %s: %w", id, err)
		}
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	return data, nil
}

// Exists checks if a file exists for id.
func (s *Storage) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Delete removes the file for id. A missing file is not an error.
func (s *Storage) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(id)); err != nil {
		if os.IsNotExist(err) {
			// Already deleted, not an error.
			return nil
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}

	return nil
}

// Path returns the full filesystem path for id.
func (s *Storage) Path(id string) string {
	return filepath.Join(s.basePath, id)
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if id != filepath.Base(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid ID %q", id)
	}
	return nil
}

// RawStorage holds raw uploads waiting for conversion.
type RawStorage struct {
	dir string
}

// NewRawStorage creates a RawStorage rooted at dir, creating it if needed.
func NewRawStorage(dir string) (*RawStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("raw directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create raw directory: %w", err)
	}
	return &RawStorage{dir: dir}, nil
}

// Dir returns the raw-input directory.
func (r *RawStorage) Dir() string {
	return r.dir
}

// Create writes src to a new file named name and returns its path.
// A partially written file is removed on failure.
func (r *RawStorage) Create(name string, src io.Reader) (string, error) {
	if err := validateID(name); err != nil {
		return "", err
	}

	path := filepath.Join(r.dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create raw file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write raw file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close raw file: %w", err)
	}
	return path, nil
}

// Read returns the bytes of a raw input.
func (r *RawStorage) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- paths come from the task queue
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return data, nil
}

// Remove deletes a raw input. A missing file is not an error.
func (r *RawStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}

// List returns the paths of all regular files in the raw-input directory, sorted by name.
func (r *RawStorage) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read raw directory: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(r.dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
