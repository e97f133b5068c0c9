package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for scan image storage
type Storage interface {
	// Save stores a blob under the given path and returns the path
	Save(path string, data []byte) (string, error)

	// Get retrieves a blob by path
	Get(path string) ([]byte, error)
}

// LocalStorage implements the Storage interface using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save stores a blob. Upload paths contain owner subdirectories, so parent
// directories are created as needed.
func (l *LocalStorage) Save(path string, data []byte) (string, error) {
	fullPath, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Get retrieves a blob from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// resolve joins the path under basePath and rejects traversal outside it.
func (l *LocalStorage) resolve(path string) (string, error) {
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(path))
	if !strings.HasPrefix(fullPath, filepath.Clean(l.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage path: %s", path)
	}
	return fullPath, nil
}
